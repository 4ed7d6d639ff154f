package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"lendingcore/cmd/internal/credential"
	"lendingcore/services/lending/client"
	"lendingcore/services/lending/server"
)

const (
	defaultEndpoint = "http://127.0.0.1:8080"
	tokenEnv        = "LENDING_API_TOKEN"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, `Usage: lendingctl <command> [flags]

Read commands:
  reserves                               list reserves
  account    -user ADDR                  account summary
  position   -user ADDR -asset ADDR      one position
  events     [-user ADDR] [-reserve ADDR] [-type T] [-after N] [-limit N]

Write commands (token from $LENDING_API_TOKEN or prompt):
  supply     -asset ADDR -amount N [-on-behalf-of ADDR] [-collateral]
  withdraw   -asset ADDR -amount N|max [-to ADDR]
  transfer   -asset ADDR -to ADDR -amount N
  collateral -asset ADDR -enable=true|false
  borrow     -asset ADDR -amount N
  repay      -asset ADDR -amount N|max [-on-behalf-of ADDR]
  pause      [-module NAME]
  resume     [-module NAME]`)
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		usage(os.Stderr)
		return fmt.Errorf("missing command")
	}
	command := args[0]
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	endpoint := fs.String("endpoint", envOr("LENDING_ENDPOINT", defaultEndpoint), "lending API base URL")
	timeout := fs.Duration("timeout", 15*time.Second, "request timeout")
	user := fs.String("user", "", "account address")
	asset := fs.String("asset", "", "reserve asset address")
	amount := fs.String("amount", "", "amount in base units, or max where allowed")
	to := fs.String("to", "", "recipient address")
	onBehalfOf := fs.String("on-behalf-of", "", "beneficiary address")
	collateral := fs.Bool("collateral", false, "enable the supplied reserve as collateral")
	enable := fs.Bool("enable", true, "collateral flag value")
	reserve := fs.String("reserve", "", "event reserve filter")
	eventType := fs.String("type", "", "event type filter")
	after := fs.Uint64("after", 0, "return events after this sequence")
	limit := fs.Int("limit", 0, "maximum events to return")
	module := fs.String("module", "lending", "module to pause or resume")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	token := ""
	if isWrite(command) {
		resolved, err := credential.NewSource(tokenEnv, "Enter lending API token: ").Get()
		if err != nil {
			return err
		}
		token = resolved
	}
	c, err := client.New(*endpoint, token, nil)
	if err != nil {
		return err
	}

	var result any
	switch command {
	case "reserves":
		result, err = c.Reserves(ctx)
	case "account":
		result, err = c.Account(ctx, *user)
	case "position":
		result, err = c.Position(ctx, *user, *asset)
	case "events":
		result, err = c.Events(ctx, client.EventQuery{
			Reserve: *reserve, User: *user, Type: *eventType, After: *after, Limit: *limit,
		})
	case "supply":
		result, err = c.Supply(ctx, server.SupplyRequest{
			Asset: *asset, Amount: *amount, OnBehalfOf: *onBehalfOf, UseAsCollateral: *collateral,
		})
	case "withdraw":
		result, err = c.Withdraw(ctx, server.WithdrawRequest{Asset: *asset, Amount: *amount, To: *to})
	case "transfer":
		result, err = c.Transfer(ctx, server.TransferRequest{Asset: *asset, To: *to, Amount: *amount})
	case "collateral":
		err = c.SetCollateral(ctx, server.CollateralRequest{Asset: *asset, UseAsCollateral: *enable})
	case "borrow":
		result, err = c.Borrow(ctx, server.BorrowRequest{Asset: *asset, Amount: *amount})
	case "repay":
		result, err = c.Repay(ctx, server.RepayRequest{Asset: *asset, Amount: *amount, OnBehalfOf: *onBehalfOf})
	case "pause":
		err = c.Pause(ctx, *module)
	case "resume":
		err = c.Resume(ctx, *module)
	default:
		usage(os.Stderr)
		return fmt.Errorf("unknown command %q", command)
	}
	if err != nil {
		return err
	}
	if result == nil {
		fmt.Fprintln(out, "ok")
		return nil
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func isWrite(command string) bool {
	switch command {
	case "supply", "withdraw", "transfer", "collateral", "borrow", "repay", "pause", "resume":
		return true
	default:
		return false
	}
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
