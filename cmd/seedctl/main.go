package main

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"seedchain/cmd/internal/bootstrap"
	"seedchain/config"
	"seedchain/core"
	"seedchain/crypto"
	"seedchain/native/seeds"
	"seedchain/observability/logging"
)

const defaultConfig = "./config.toml"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	var err error
	switch os.Args[1] {
	case "init":
		err = runInit(os.Args[2:])
	case "apply":
		err = runApply(os.Args[2:])
	case "show":
		err = runShow(os.Args[2:])
	case "keygen":
		err = runKeygen()
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("Usage: seedctl <command> [flags]")
	fmt.Println("  init    -config <path>                  write a default config and apply its genesis")
	fmt.Println("  apply   -config <path> -script <yaml>   apply a transaction script to the local state")
	fmt.Println("  show    -config <path> -target <addr>   print a candidate and its dispute")
	fmt.Println("  keygen                                  generate a key and print its address")
}

func openNode(configPath string) (*core.Node, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger := logging.Setup("seedctl", cfg.Env)
	db, err := bootstrap.OpenDatabase(cfg)
	if err != nil {
		return nil, nil, err
	}
	params, err := bootstrap.Params(cfg)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	node, err := core.NewNode(db, params, nil, logger)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	genesis, err := bootstrap.Genesis(cfg)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	if _, err := node.ApplyGenesis(genesis); err != nil && !errors.Is(err, core.ErrGenesisApplied) {
		db.Close()
		return nil, nil, err
	}
	return node, func() {
		node.Close()
		db.Close()
	}, nil
}

func runInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	configPath := fs.String("config", defaultConfig, "Path to the config file")
	fs.Parse(args)

	node, closeFn, err := openNode(*configPath)
	if err != nil {
		return err
	}
	defer closeFn()
	fmt.Printf("Initialised %s at height %d\n", *configPath, node.Height())
	return nil
}

func runApply(args []string) error {
	fs := flag.NewFlagSet("apply", flag.ExitOnError)
	configPath := fs.String("config", defaultConfig, "Path to the config file")
	scriptPath := fs.String("script", "", "Path to the YAML transaction script")
	fs.Parse(args)
	if *scriptPath == "" {
		return fmt.Errorf("-script is required")
	}

	f, err := os.Open(*scriptPath)
	if err != nil {
		return err
	}
	defer f.Close()
	script, err := ParseScript(f)
	if err != nil {
		return err
	}

	node, closeFn, err := openNode(*configPath)
	if err != nil {
		return err
	}
	defer closeFn()

	results, runErr := script.Run(node)
	for _, r := range results {
		status := "ok"
		if r.Err != nil {
			status = r.Err.Error()
		}
		fmt.Printf("%3d  %-26s height=%-6d events=%-3d %s\n", r.Step, r.Op, r.Height, r.Events, status)
	}
	return runErr
}

func runShow(args []string) error {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	configPath := fs.String("config", defaultConfig, "Path to the config file")
	targetFlag := fs.String("target", "", "Candidate address")
	fs.Parse(args)

	target, err := crypto.ParseAccount(*targetFlag)
	if err != nil {
		return err
	}
	node, closeFn, err := openNode(*configPath)
	if err != nil {
		return err
	}
	defer closeFn()

	out := map[string]interface{}{"height": node.Height()}
	err = node.View(func(m *core.Modules) error {
		cand, ok, err := m.Seeds.Candidate(target)
		if err != nil {
			return err
		}
		if !ok {
			return seeds.ErrCandidateNotFound
		}
		out["candidate"] = map[string]interface{}{
			"score":        cand.Score,
			"pathfinder":   crypto.FromAccount(cand.Pathfinder).String(),
			"hasChallenge": cand.HasChallenge,
			"addAt":        cand.AddAt,
			"pledge":       cand.Pledge.Dec(),
		}
		d, err := m.Seeds.Dispute(target)
		if err != nil {
			return err
		}
		out["dispute"] = map[string]interface{}{
			"depth": d.Depth,
			"order": d.Order,
			"stage": d.Stage.String(),
			"index": d.Index,
		}
		if rec, ok, err := m.Challenge.Get(seeds.AppID, target); err != nil {
			return err
		} else if ok {
			out["status"] = rec.Status.String()
			out["challenger"] = crypto.FromAccount(rec.Challenger).String()
		}
		return nil
	})
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func runKeygen() error {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	fmt.Printf("Address:     %s\n", key.PubKey().Address().String())
	fmt.Printf("Private key: %s\n", hex.EncodeToString(key.Bytes()))
	return nil
}
