package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/urfave/cli/v2"

	"github.com/oomaallah/hotelops/jobs"
)

// jobsCLI wraps manual management helpers for Asynq jobs.
type jobsCLI struct {
	client    *jobs.Client
	inspector *asynq.Inspector
}

func newJobsCLI(redisAddr string) (*jobsCLI, error) {
	opts := asynq.RedisClientOpt{Addr: redisAddr}
	client, err := jobs.NewClient(opts)
	if err != nil {
		return nil, err
	}
	return &jobsCLI{client: client, inspector: asynq.NewInspector(opts)}, nil
}

// Close releases underlying resources.
func (c *jobsCLI) Close() error {
	var errs []error
	if c.inspector != nil {
		errs = append(errs, c.inspector.Close())
	}
	if c.client != nil {
		errs = append(errs, c.client.Close())
	}
	return errors.Join(errs...)
}

// Trigger enqueues a maintenance task by name with its default payload.
func (c *jobsCLI) Trigger(ctx context.Context, name string, fix bool) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	var payload any
	if name == jobs.TaskOrderTotals {
		payload = jobs.OrderTotalsPayload{Fix: fix}
	}
	return c.client.Enqueue(ctx, name, payload)
}

// queueStats summarises the current queue state.
type queueStats struct {
	Queue     string
	Pending   int
	Active    int
	Scheduled int
	Retry     int
	Archived  int
}

func (c *jobsCLI) InspectQueue() (queueStats, error) {
	if c == nil || c.inspector == nil {
		return queueStats{}, errors.New("jobs cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return queueStats{}, err
	}
	return queueStats{
		Queue:     info.Queue,
		Pending:   info.Pending,
		Active:    info.Active,
		Scheduled: info.Scheduled,
		Retry:     info.Retry,
		Archived:  info.Archived,
	}, nil
}

func jobsCommand() *cli.Command {
	withCLI := func(fn func(*cli.Context, *jobsCLI) error) cli.ActionFunc {
		return func(c *cli.Context) error {
			cfg, _, err := bootstrap()
			if err != nil {
				return err
			}
			jc, err := newJobsCLI(cfg.RedisAddr)
			if err != nil {
				return err
			}
			defer jc.Close()
			return fn(c, jc)
		}
	}
	return &cli.Command{
		Name:  "jobs",
		Usage: "manage maintenance jobs",
		Subcommands: []*cli.Command{
			{
				Name:      "trigger",
				Usage:     "enqueue a maintenance task now",
				ArgsUsage: "<task>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "fix", Usage: "rewrite drifted totals (pos:order-totals only)"},
				},
				Before: func(c *cli.Context) error {
					return validTaskArg(c.Args().First())
				},
				Action: withCLI(func(c *cli.Context, jc *jobsCLI) error {
					info, err := jc.Trigger(c.Context, c.Args().First(), c.Bool("fix"))
					if err != nil {
						return err
					}
					_, err = fmt.Fprintf(c.App.Writer, "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
					return err
				}),
			},
			{
				Name:  "stats",
				Usage: "show default queue counters",
				Action: withCLI(func(c *cli.Context, jc *jobsCLI) error {
					stats, err := jc.InspectQueue()
					if err != nil {
						return err
					}
					_, err = fmt.Fprintf(c.App.Writer, "queue=%s pending=%d active=%d scheduled=%d retry=%d archived=%d\n",
						stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived)
					return err
				}),
			},
		},
	}
}

func validTaskArg(name string) error {
	for _, t := range jobs.TaskTypes() {
		if t == name {
			return nil
		}
	}
	return cli.Exit(fmt.Sprintf("unknown task %q, expected one of %v", name, jobs.TaskTypes()), 1)
}
