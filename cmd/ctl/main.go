package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	control "market-sync/src/grpc_control"
	"market-sync/src/protocol"
)

const usage = `usage: ctl [-addr host:port] <command> [flags]

commands:
  snapshot            print the current snapshot as JSON
  add [flags]         add a market (see ctl add -h)
  remove <ASSET>      remove a market
  toggle <ASSET>      pause or resume a market
  close-all           close every position
  pause-all           pause every market
  reload              ask the engine for the full session
  dismiss             close the visible notice
  timeframes          list the time frames
`

// -----------------------------------------------------------------------------

func main() {
	addr := flag.String("addr", "127.0.0.1:50051", "control service address")
	timeout := flag.Duration("timeout", 5*time.Second, "request timeout")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	client, err := control.Dial(*addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := run(ctx, client, flag.Arg(0), flag.Args()[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// -----------------------------------------------------------------------------

func run(ctx context.Context, client *control.ControlClient, command string, args []string) error {
	switch command {
	case "snapshot":
		raw, err := client.SnapshotJSON(ctx)
		if err != nil {
			return err
		}
		fmt.Println(string(raw))
		return nil

	case "add":
		return runAdd(ctx, client, args)

	case "remove", "toggle":
		if len(args) != 1 {
			return fmt.Errorf("%s takes exactly one asset", command)
		}
		asset := protocol.NormalizeAsset(args[0])
		if asset == "" {
			return fmt.Errorf("empty asset")
		}
		var cmd protocol.Command = protocol.RemoveMarket{Asset: asset}
		if command == "toggle" {
			cmd = protocol.ToggleMarket{Asset: asset}
		}
		return submit(ctx, client, cmd)

	case "close-all":
		return submit(ctx, client, protocol.CloseAll{})
	case "pause-all":
		return submit(ctx, client, protocol.PauseAll{})
	case "reload":
		return submit(ctx, client, protocol.GetSession{})

	case "dismiss":
		return client.DismissNotice(ctx)

	case "timeframes":
		tfs, err := client.TimeFrames(ctx)
		if err != nil {
			return err
		}
		for _, tf := range tfs {
			fmt.Printf("%-8s %-4s %v\n", tf.String(), tf.Symbol(), tf.Duration())
		}
		return nil
	}
	return fmt.Errorf("unknown command %q\n\n%s", command, usage)
}

// -----------------------------------------------------------------------------

func runAdd(ctx context.Context, client *control.ControlClient, args []string) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	var (
		form addForm
		lev  uint
	)
	fs.StringVar(&form.Asset, "asset", "", "asset ticker")
	fs.StringVar(&form.TimeFrame, "tf", "1h", "time frame symbol")
	fs.UintVar(&lev, "lev", 1, "leverage")
	fs.StringVar(&form.Risk, "risk", "Normal", "Low, Normal or High")
	fs.StringVar(&form.Style, "style", "Swing", "Scalp or Swing")
	fs.StringVar(&form.Stance, "stance", "Neutral", "Bull, Bear or Neutral")
	fs.BoolVar(&form.FollowTrend, "follow-trend", false, "follow the trend")
	fs.Uint64Var(&form.TradeTime, "trade-time", 0, "max trade duration in seconds")
	fs.Float64Var(&form.Alloc, "alloc", 0, "fraction of total margin (0..1)")
	fs.Float64Var(&form.Amount, "amount", 0, "fixed margin amount")
	fs.StringVar(&form.Indicators, "indicators", "", "shorthand list, e.g. rsi:14@1h,ema:20@15m")
	fs.StringVar(&form.IndicatorsJSON, "indicators-json", "", "indicator ids as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if lev > 1<<32-1 {
		return fmt.Errorf("leverage out of range")
	}
	form.Lev = uint32(lev)

	cmd, err := form.build()
	if err != nil {
		return err
	}

	if cmd.Info.MarginAlloc.Mode == protocol.MarginAlloc {
		if snap, err := client.Snapshot(ctx); err == nil {
			fmt.Printf("Allocating about %s of %.2f available\n",
				allocPreview(form.Alloc, snap.TotalMargin).StringFixed(2), snap.TotalMargin)
		}
	}
	return submit(ctx, client, cmd)
}

func submit(ctx context.Context, client *control.ControlClient, cmd protocol.Command) error {
	if err := client.Submit(ctx, cmd); err != nil {
		return err
	}
	fmt.Printf("Submitted %s\n", cmd.CommandTag())
	return nil
}
