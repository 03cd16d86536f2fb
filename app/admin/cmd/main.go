package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"

	"portarium/app/config"
	"portarium/app/db"
	"portarium/app/objects"
	"portarium/app/outbox"
	"portarium/app/policy"
	"portarium/app/run"
	"portarium/app/run/states"
	"portarium/pkg/contextx"
	"portarium/pkg/messaging"
)

var (
	workspace = flag.String("s", "", "workspace id")
	runID     = flag.String("r", "", "run id, prints the run and its verified evidence chain")
	list      = flag.Bool("l", false, "list the workspace's runs")
	cancel    = flag.String("cancel", "", "run id to cancel through the policy-checked transition path")
	sweep     = flag.Bool("sweep", false, "drain the outbox once, including entries past max retries")
)

func init() {
	cfg := &db.Config{
		Connection:  config.Config.Database.Connection,
		Debug:       config.Config.Database.Debug,
		PoolSize:    config.Config.Database.PoolSize,
		IdleTimeout: config.Config.Database.IdleTimeout,
	}
	if err := db.Init(cfg); err != nil {
		panic(err)
	}
}

func dump(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		panic(err)
	}
	fmt.Println(string(data))
}

func showRun(ctx *contextx.Context) {
	aggregate, err := objects.LoadRunAggregate(ctx, *runID, nil, nil)
	if err != nil {
		panic(err)
	}
	dump(aggregate.Run())
	dump(aggregate.Chain())
	fmt.Println("evidence chain verified")
}

func listRuns(ctx *contextx.Context) {
	runs, err := objects.QueryRuns(ctx, nil)
	if err != nil {
		panic(err)
	}
	for _, run := range runs {
		dump(run.ToDomain())
	}
}

// cancelRun walks the normal transition path, so the cancellation leaves an
// evidence entry and an outbox event like any other status change.
func cancelRun(ctx *contextx.Context) {
	policyCfg := config.Config.Policy
	profiles, err := policy.LoadProfiles(policyCfg.ProfilesPath)
	if err != nil {
		panic(err)
	}

	result, err := objects.TransitionRun(ctx, *cancel, run.TransitionRequest{
		Target:      states.CANCELLED,
		Environment: policy.Environment(policyCfg.Environment),
		RequestedBy: "admin-cli",
	}, nil, profiles)
	if err != nil {
		panic(err)
	}
	dump(result)
}

// sweepOutbox is the operator drain: unlike the dispatcher loop it also
// retries entries that exhausted their retry budget.
func sweepOutbox() {
	msgCfg := config.Config.Messaging
	connector, err := messaging.NewConnector(msgCfg.Connection)
	if err != nil {
		panic(err)
	}
	publisher := messaging.NewPublisher(connector, msgCfg.Exchange)
	defer publisher.Close()

	store := objects.NewGormOutboxStore("admin-sweep", outbox.UTCClock{})
	dispatcher := outbox.NewDispatcher(store, publisher, outbox.UTCClock{}, outbox.Config{
		BatchSize:  config.Config.Outbox.BatchSize,
		MaxRetries: config.Config.Outbox.MaxRetries,
	})

	report, err := dispatcher.Sweep(context.Background())
	if err != nil {
		panic(err)
	}
	fmt.Printf("outbox sweep published=%d failed=%d\n", report.Published, report.Failed)
}

func main() {
	flag.Parse()

	ctx := contextx.NewContext()
	if *workspace != "" {
		ctx.Set("workspace_id", *workspace)
	}

	switch {
	case *runID != "":
		showRun(ctx)
	case *list:
		listRuns(ctx)
	case *cancel != "":
		cancelRun(ctx)
	case *sweep:
		sweepOutbox()
	default:
		flag.Usage()
	}
}
