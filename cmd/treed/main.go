package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"blockchaintree.dev/core/consensus"
	"blockchaintree.dev/core/keys"
	"blockchaintree.dev/core/node"
	"blockchaintree.dev/core/tree"
)

var nowUnix = func() int64 { return time.Now().Unix() }

var openTreeFn = tree.Open

var newMinerFn = node.NewMiner

var keysOpenFn = keys.Open

var keysSealFn = keys.Seal

var keysGenerateFn = keys.Generate

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	defaults := node.DefaultConfig()
	var peers multiStringFlag

	cfg := defaults
	fs := flag.NewFlagSet("treed", flag.ContinueOnError)
	fs.SetOutput(stderr)

	peerCSV := fs.String("peers", "", "bootstrap peers, comma-separated host:port")
	fs.Var(&peers, "peer", "single bootstrap peer host:port (repeatable)")
	fs.StringVar(&cfg.Network, "network", defaults.Network, "network name (devnet/testnet/mainnet)")
	fs.StringVar(&cfg.DataDir, "datadir", defaults.DataDir, "chain tree data directory")
	fs.StringVar(&cfg.BindAddr, "bind", defaults.BindAddr, "bind address host:port")
	fs.StringVar(&cfg.LogLevel, "log-level", defaults.LogLevel, "log level: debug|info|warn|error")
	fs.IntVar(&cfg.MaxPeers, "max-peers", defaults.MaxPeers, "max connected peers")
	fs.StringVar(&cfg.MinerAddressHex, "miner-address", "", "hex-encoded 33-byte address to credit mined blocks to")
	mineBlocks := fs.Int("mine-blocks", 0, "mine N main-chain blocks locally after startup")
	mineExit := fs.Bool("mine-exit", false, "exit immediately after local mining")
	dryRun := fs.Bool("dry-run", false, "print effective config and exit")
	keystorePath := fs.String("keystore", "", "path to an encrypted signing keystore")
	keystorePassphrase := fs.String("keystore-passphrase", "", "passphrase to unlock -keystore")
	keystoreInit := fs.Bool("keystore-init", false, "generate a new key pair, seal it to -keystore, print its address, and exit")
	sendTo := fs.String("send-to", "", "hex-encoded 33-byte receiver address for a transfer signed with -keystore")
	sendAmount := fs.String("send-amount", "", "base-10 amount to transfer to -send-to")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *keystoreInit {
		if *keystorePath == "" {
			_, _ = fmt.Fprintln(stderr, "keystore-init requires -keystore")
			return 2
		}
		kp, err := keysGenerateFn()
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "key generation failed: %v\n", err)
			return 1
		}
		if err := keysSealFn(kp.Private, *keystorePassphrase, *keystorePath); err != nil {
			_, _ = fmt.Fprintf(stderr, "keystore seal failed: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintf(stdout, "keystore: wrote %s address=%x\n", *keystorePath, kp.Address)
		return 0
	}

	var signer *keys.KeyPair
	if *keystorePath != "" {
		kp, err := keysOpenFn(*keystorePath, *keystorePassphrase)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "keystore open failed: %v\n", err)
			return 2
		}
		signer = kp
		if cfg.MinerAddressHex == "" {
			cfg.MinerAddressHex = hex.EncodeToString(signer.Address[:])
		}
	}

	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.Peers = node.NormalizePeers(append([]string{*peerCSV}, peers...)...)
	if err := node.ValidateConfig(cfg); err != nil {
		_, _ = fmt.Fprintf(stderr, "invalid config: %v\n", err)
		return 2
	}
	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		_, _ = fmt.Fprintf(stderr, "datadir create failed: %v\n", err)
		return 2
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "logger init failed: %v\n", err)
		return 2
	}
	defer func() { _ = logger.Sync() }()

	if err := printConfig(stdout, cfg); err != nil {
		_, _ = fmt.Fprintf(stderr, "config encode failed: %v\n", err)
		return 1
	}

	chainTree, err := openTreeFn(cfg.DataDir, logger)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "chain tree open failed: %v\n", err)
		return 2
	}
	defer func() { _ = chainTree.Close() }()

	height := chainTree.MainChain().Height()
	difficulty := chainTree.MainChain().Difficulty()
	_, _ = fmt.Fprintf(stdout, "chaintree: height=%s difficulty=%x pending_tx=%d\n", height.String(), difficulty, chainTree.Pool().Len())

	if *dryRun {
		return 0
	}

	if *sendTo != "" {
		if signer == nil {
			_, _ = fmt.Fprintln(stderr, "send-to requires -keystore")
			return 2
		}
		receiver, err := parseAddressHex(*sendTo)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "send-to invalid: %v\n", err)
			return 2
		}
		amount, ok := new(big.Int).SetString(*sendAmount, 10)
		if !ok {
			_, _ = fmt.Fprintf(stderr, "send-amount invalid: %q\n", *sendAmount)
			return 2
		}
		tx := &consensus.Transaction{
			Sender:    signer.Address,
			Receiver:  receiver,
			Timestamp: nowUnixU64(),
			Amount:    amount,
		}
		if err := signer.Sign(tx); err != nil {
			_, _ = fmt.Fprintf(stderr, "transaction signing failed: %v\n", err)
			return 1
		}
		if err := chainTree.SendTransaction(tx); err != nil {
			_, _ = fmt.Fprintf(stderr, "transaction rejected: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintf(stdout, "submitted: hash=%x to=%x amount=%s\n", tx.Hash(), receiver, amount.String())
	}

	if *mineBlocks > 0 {
		if cfg.MinerAddressHex == "" {
			_, _ = fmt.Fprintln(stderr, "mine-blocks requires -miner-address")
			return 2
		}
		founder, err := cfg.MinerAddress()
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "miner address invalid: %v\n", err)
			return 2
		}
		miner := newMinerFn(chainTree, founder, logger)
		mined, err := miner.MineN(context.Background(), *mineBlocks, nowUnixU64())
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "mining failed: %v\n", err)
			return 2
		}
		for _, b := range mined {
			if b == nil {
				continue
			}
			hash, _ := b.Hash()
			_, _ = fmt.Fprintf(stdout, "mined: height=%s hash=%x difficulty=%x\n", b.Info().Height.String(), hash, b.Info().Difficulty)
		}
		if *mineExit {
			return 0
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_, _ = fmt.Fprintln(stdout, "treed running")
	<-ctx.Done()
	if err := chainTree.Flush(); err != nil {
		_, _ = fmt.Fprintf(stderr, "final flush failed: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(stdout, "treed stopped")
	return 0
}

type multiStringFlag []string

func (m *multiStringFlag) String() string {
	if m == nil {
		return ""
	}
	return strings.Join(*m, ",")
}

func (m *multiStringFlag) Set(value string) error {
	*m = append(*m, value)
	return nil
}

func printConfig(w io.Writer, cfg node.Config) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(cfg)
}

func parseAddressHex(s string) (consensus.Address, error) {
	var addr consensus.Address
	raw, err := hex.DecodeString(s)
	if err != nil {
		return addr, err
	}
	if len(raw) != len(addr) {
		return addr, fmt.Errorf("want %d bytes, got %d", len(addr), len(raw))
	}
	copy(addr[:], raw)
	return addr, nil
}

func nowUnixU64() uint64 {
	now := nowUnix()
	if now <= 0 {
		return 0
	}
	return uint64(now)
}

func newLogger(level string) (*zap.Logger, error) {
	var zapLevel zap.AtomicLevel
	switch level {
	case "debug":
		zapLevel = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "warn":
		zapLevel = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapLevel = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		zapLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zapLevel
	return cfg.Build()
}
