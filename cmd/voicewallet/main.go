package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/arcpay/voicewallet/internal/agent"
	"github.com/arcpay/voicewallet/internal/audit"
	"github.com/arcpay/voicewallet/internal/clock"
	"github.com/arcpay/voicewallet/internal/config"
	"github.com/arcpay/voicewallet/internal/erc20"
	"github.com/arcpay/voicewallet/internal/keystore"
	"github.com/arcpay/voicewallet/internal/multicall"
	"github.com/arcpay/voicewallet/internal/noncemgr"
	"github.com/arcpay/voicewallet/internal/obslog"
	"github.com/arcpay/voicewallet/internal/payment"
	"github.com/arcpay/voicewallet/internal/rpcclient"
	"github.com/arcpay/voicewallet/internal/swap"
	"github.com/arcpay/voicewallet/internal/txbuilder"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "create":
		handleCreateWallet()
	case "restore":
		handleRestoreWallet()
	case "address":
		handleShowAddress()
	case "cloud-sync":
		handleEnableCloudSync()
	case "serve":
		handleServe()
	case "version":
		fmt.Printf("voicewallet v%s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("voicewallet - on-device EVM wallet for voice-driven crypto payments")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  voicewallet create   Create a new wallet and print its address")
	fmt.Println("  voicewallet restore  Restore a wallet from a BIP-39 mnemonic")
	fmt.Println("  voicewallet address  Print the managed wallet's address")
	fmt.Println("  voicewallet cloud-sync  Move the managed key into the cloud-synced slot")
	fmt.Println("  voicewallet serve    Run the tool dispatcher, reading JSON tool calls from stdin")
	fmt.Println("  voicewallet version  Show version information")
	fmt.Println("  voicewallet help     Show this help message")
}

// newKeystore opens the local-only slot: the Argon2id+AES-GCM file
// backend under VOICEWALLET_KEYSTORE_DIR when that variable is set
// (headless `serve` deployments), otherwise the OS secret store. There is
// no automatic fallback: if the OS keyring cannot be opened, the process
// exits. When VOICEWALLET_CLOUD_SYNC_DIR is set, it also
// wires an Argon2id+AES-GCM file backend rooted there as the
// device-portable cloud-synced slot (spec.md §4.3) — the directory is
// expected to itself be synchronized across devices by the OS or a
// sync client; voicewallet only owns the encryption.
func newKeystore(cfg *config.Config) *keystore.Keystore {
	var ks *keystore.Keystore
	if dir := os.Getenv("VOICEWALLET_KEYSTORE_DIR"); dir != "" {
		password := readPassword("Keystore password: ")
		backend, err := keystore.NewFileBackend(dir, password)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open file keystore: %v\n", err)
			os.Exit(1)
		}
		ks = keystore.New(backend, "wallet")
	} else {
		backend, err := keystore.NewOSBackend(cfg.KeystoreNamespace)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open OS keyring: %v\n", err)
			os.Exit(1)
		}
		ks = keystore.New(backend, "wallet")
	}

	if cloudDir := os.Getenv("VOICEWALLET_CLOUD_SYNC_DIR"); cloudDir != "" {
		password := readPassword("Cloud-sync passphrase: ")
		cloudBackend, err := keystore.NewFileBackend(cloudDir, password)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open cloud-sync keystore: %v\n", err)
			os.Exit(1)
		}
		ks.SetCloudBackend(cloudBackend)
	}

	return ks
}

func readPassword(prompt string) []byte {
	fmt.Print(prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read password: %v\n", err)
		os.Exit(1)
	}
	return password
}

func handleCreateWallet() {
	cfg := config.DefaultConfig()
	ks := newKeystore(cfg)

	addr, err := ks.Create()
	if err != nil {
		color.Red("failed to create wallet: %v", err)
		os.Exit(1)
	}
	color.Green("Wallet created: 0x%x", addr)
}

func handleRestoreWallet() {
	reader := bufio.NewReader(os.Stdin)
	fmt.Print("Mnemonic phrase: ")
	mnemonic, _ := reader.ReadString('\n')
	mnemonic = strings.TrimSpace(mnemonic)

	fmt.Print("BIP-39 passphrase (optional, press Enter to skip): ")
	passphrase, _ := reader.ReadString('\n')
	passphrase = strings.TrimSpace(passphrase)

	cfg := config.DefaultConfig()
	ks := newKeystore(cfg)

	addr, err := ks.ImportMnemonic(mnemonic, passphrase)
	if err != nil {
		color.Red("failed to restore wallet: %v", err)
		os.Exit(1)
	}
	color.Green("Wallet restored: 0x%x", addr)
}

// handleEnableCloudSync moves the managed key from the local-only slot
// into the cloud-synced slot (spec.md §4.3), recording the outcome as an
// audit.OpWalletCloudSync entry. It is the only key-lifecycle command
// here that writes to the audit log; create and restore do not.
func handleEnableCloudSync() {
	cfg := config.DefaultConfig()
	ks := newKeystore(cfg)

	addr, err := ks.Address()
	if err != nil {
		color.Red("failed to read wallet address: %v", err)
		os.Exit(1)
	}

	auditPath := os.Getenv("VOICEWALLET_AUDIT_LOG")
	if auditPath == "" {
		auditPath = "voicewallet-audit.ndjson"
	}
	auditLog, err := audit.New(auditPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open audit log: %v\n", err)
		os.Exit(1)
	}

	addrHex := fmt.Sprintf("0x%x", addr)
	if err := ks.EnableCloudSync(); err != nil {
		_ = auditLog.Log(audit.Entry{Timestamp: time.Now(), Operation: audit.OpWalletCloudSync, Status: audit.StatusFailure, Address: addrHex, FailureReason: err.Error()})
		color.Red("failed to enable cloud sync: %v", err)
		os.Exit(1)
	}
	_ = auditLog.Log(audit.Entry{Timestamp: time.Now(), Operation: audit.OpWalletCloudSync, Status: audit.StatusSuccess, Address: addrHex})
	color.Green("Cloud sync enabled for wallet %s", addrHex)
}

func handleShowAddress() {
	cfg := config.DefaultConfig()
	ks := newKeystore(cfg)

	addr, err := ks.Address()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read wallet address: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("0x%x\n", addr)
}

// serveRequest is one line of newline-delimited JSON read from stdin by
// `voicewallet serve`: a single tool call as the voice agent would issue
// it (spec.md §4.11).
type serveRequest struct {
	Tool string          `json:"tool"`
	Args json.RawMessage `json:"args"`
}

// handleServe runs the tool dispatcher as a long-lived process: each
// line of stdin is one JSON tool call, each line of stdout is its
// Response. This is the integration surface a voice-agent host process
// talks to, replacing the teacher's dashboard-mode env-var/JSON-stdout
// convention with a persistent request/response stream suited to a
// session that spans many tool calls.
func handleServe() {
	cfg := config.DefaultConfig()
	log := obslog.New()
	defer log.Sync()

	ks := newKeystore(cfg)
	if hasWallet, err := ks.HasWallet(); err != nil || !hasWallet {
		fmt.Fprintln(os.Stderr, "no wallet provisioned; run `voicewallet create` or `voicewallet restore` first")
		os.Exit(1)
	}

	chain := rpcclient.New(cfg.RPCEndpoint, 30*time.Second)
	nonces := noncemgr.New(chain, clock.Real(), time.Duration(cfg.NonceCacheWindowSeconds)*time.Second)
	builder := txbuilder.New(chain, nonces, ks, clock.Real(), txbuilder.Config{
		ChainID:           cfg.ChainIDBig(),
		GasPriceBufferPct: cfg.GasPriceBufferPct,
		GasLimitBufferPct: cfg.GasLimitBufferPct,
		ReceiptPollCap:    time.Duration(cfg.ReceiptPollCapSeconds) * time.Second,
	})

	mc, err := multicall.New(chain)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to construct multicall reader: %v\n", err)
		os.Exit(1)
	}
	planner := swap.New(mc, chain, clock.Real(), cfg)
	usdc := erc20.New(chain, cfg.USDCAddress)

	auditPath := os.Getenv("VOICEWALLET_AUDIT_LOG")
	if auditPath == "" {
		auditPath = "voicewallet-audit.ndjson"
	}
	auditLog, err := audit.New(auditPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open audit log: %v\n", err)
		os.Exit(1)
	}

	engine := payment.New(ks, usdc, chain, planner, builder, clock.Real(), cfg, auditLog, log)
	engine.SetNonceResetter(nonces)

	dispatcher := agent.New(engine, log)

	scanner := bufio.NewScanner(os.Stdin)
	encoder := json.NewEncoder(os.Stdout)
	var encMu sync.Mutex
	ctx := context.Background()

	// Each line is dispatched on its own goroutine rather than inline:
	// confirm_payment blocks for up to two broadcast+receipt-poll cycles,
	// and cancel_payment must be able to reach the dispatcher while that
	// call is still in flight (spec.md §5, §8 Scenario 3). The Dispatcher
	// holds no lock of its own; the Engine rejects a mutating call that
	// overlaps another with a busy error. This loop only needs to stop
	// encoder.Encode calls from interleaving.
	var inFlight sync.WaitGroup
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var req serveRequest
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			encMu.Lock()
			_ = encoder.Encode(agent.Response{OK: false, Status: "invalid-state", Message: "malformed request: " + err.Error()})
			encMu.Unlock()
			continue
		}

		inFlight.Add(1)
		go func(req serveRequest) {
			defer inFlight.Done()
			resp := dispatcher.Dispatch(ctx, req.Tool, req.Args)
			encMu.Lock()
			defer encMu.Unlock()
			if err := encoder.Encode(resp); err != nil {
				log.Error("failed to encode response", zap.Error(err))
			}
		}(req)
	}
	inFlight.Wait()
}
