package evidence

import (
	"encoding/json"
	"fmt"
	"net/url"
)

// Entry is one immutable, hash-linked audit record of a consequential action
// taken on an aggregate. Entries for one aggregate form a strictly ordered
// singly-linked chain: PreviousHash of entry i equals HashSha256 of entry i-1,
// and the first entry of a chain carries no PreviousHash at all.
type Entry struct {
	// 行为摘要
	Summary string `json:"summary"`
	// 关联对象，例如 runId、workItemId
	Links map[string]string `json:"links,omitempty"`
	// 外部凭证地址，不允许带 query 或 fragment
	PayloadRefs []string `json:"payloadRefs,omitempty"`

	PreviousHash string `json:"previousHash,omitempty"`
	HashSha256   string `json:"hashSha256"`
}

// Draft is what callers supply; the link fields are owned by Append.
type Draft struct {
	Summary     string
	Links       map[string]string
	PayloadRefs []string
}

func (d Draft) validate() error {
	for _, ref := range d.PayloadRefs {
		uri, err := url.Parse(ref)
		if err != nil {
			return fmt.Errorf("payload ref %q is not a valid URI: %s", ref, err.Error())
		}
		if uri.RawQuery != "" || uri.Fragment != "" {
			return fmt.Errorf("payload ref %q must not carry a query or fragment", ref)
		}
	}
	return nil
}

// Canonicalize returns the canonical JSON form of an entry with its own hash
// stripped. This string is the cross-language hashing contract:
//   - keys sorted lexicographically at every nesting level
//   - no insignificant whitespace
//   - absent optional fields omitted entirely
//   - values are strings, string maps and string arrays only, so no number
//     formatting rules apply
//
// Any two conforming implementations must produce byte-identical output for
// the same logical entry.
func Canonicalize(e Entry) string {
	canonical := map[string]interface{}{
		"summary": e.Summary,
	}
	if len(e.Links) > 0 {
		canonical["links"] = e.Links
	}
	if len(e.PayloadRefs) > 0 {
		canonical["payloadRefs"] = e.PayloadRefs
	}
	if e.PreviousHash != "" {
		canonical["previousHash"] = e.PreviousHash
	}

	// encoding/json sorts map keys, which is exactly the ordering rule above.
	data, err := json.Marshal(canonical)
	if err != nil {
		// Only string-typed values reach the encoder, so this cannot happen.
		panic(err)
	}
	return string(data)
}

// Append links and seals the next entry of a chain. previous is nil only for
// the first entry. The caller must serialize appends per aggregate; two
// concurrent appends against the same previous entry corrupt the chain.
func Append(previous *Entry, next Draft, hasher Hasher) (Entry, error) {
	if err := next.validate(); err != nil {
		return Entry{}, err
	}

	entry := Entry{
		Summary:     next.Summary,
		Links:       next.Links,
		PayloadRefs: next.PayloadRefs,
	}
	if previous != nil {
		entry.PreviousHash = previous.HashSha256
	}
	entry.HashSha256 = hasher.Sha256Hex(Canonicalize(entry))
	return entry, nil
}
