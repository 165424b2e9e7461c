// Binary orderctl is a terminal menu for placing and cancelling limit orders through relayd.
// Transactions are signed locally; relayd only ever sees signed blobs.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	solana "github.com/gagliardetto/solana-go"

	"github.com/kirarisk/JupLimits/internal/config"
	"github.com/kirarisk/JupLimits/internal/dex/jupiter"
	dexsol "github.com/kirarisk/JupLimits/internal/dex/solana"
	"github.com/kirarisk/JupLimits/internal/orders"
	"github.com/kirarisk/JupLimits/internal/util"
)

const defaultConfigPath = "internal/config/config.yaml"

type session struct {
	cfg    *config.Config
	key    solana.PrivateKey
	api    *relaydClient
	reader *bufio.Reader
}

func main() {
	reader := bufio.NewReader(os.Stdin)

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	key, err := dexsol.LoadPrivateKeyFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load wallet: %v\n", err)
		os.Exit(1)
	}
	s := &session{cfg: cfg, key: key, api: newRelaydClient(apiBase(cfg)), reader: reader}

	for {
		fmt.Println("\n=== JupLimits Orders ===")
		fmt.Println("1) Show configuration summary")
		fmt.Println("2) Create limit order")
		fmt.Println("3) List open orders")
		fmt.Println("4) Cancel orders")
		fmt.Println("5) Show wallet balance")
		fmt.Println("6) Edit relay and fee settings")
		fmt.Println("7) Save config")
		fmt.Println("8) Reload config from disk")
		fmt.Println("0) Exit")
		fmt.Print("Select option: ")

		input, _ := reader.ReadString('\n')
		choice := strings.TrimSpace(input)

		switch choice {
		case "1":
			s.printSummary()
		case "2":
			s.createOrder()
		case "3":
			s.listOrders()
		case "4":
			s.cancelOrders()
		case "5":
			s.showBalance()
		case "6":
			s.editSettings()
		case "7":
			if err := saveConfig(s.cfg); err != nil {
				fmt.Fprintf(os.Stderr, "save failed: %v\n", err)
			} else {
				fmt.Println("config saved")
			}
		case "8":
			reloaded, err := loadConfig()
			if err != nil {
				fmt.Fprintf(os.Stderr, "reload failed: %v\n", err)
			} else {
				s.cfg = reloaded
				s.api = newRelaydClient(apiBase(reloaded))
				fmt.Println("config reloaded")
			}
		case "0":
			return
		default:
			fmt.Println("unknown option")
		}
	}
}

func (s *session) wallet() string { return s.key.PublicKey().String() }

func (s *session) printSummary() {
	fmt.Println("\n--- Configuration Summary ---")
	fmt.Printf("Relayd: %s\n", s.api.base)
	fmt.Printf("Wallet: %s\n", s.wallet())
	fmt.Printf("Block engine: %s (tip %d lamports, max %d txs)\n", s.cfg.Relay.BlockEngineURL, s.cfg.Relay.TipLamports, s.cfg.Relay.MaxBundleSize)
	fmt.Printf("Fee: %d bps to %s\n", s.cfg.Fee.Bps, orDash(s.cfg.Fee.Collector))
	fmt.Printf("Default input mint: %s\n", s.cfg.Fee.DefaultInputMint)
	fmt.Printf("Cancel polling: every %dms, %d attempts\n", s.cfg.Orders.PollIntervalMs, s.cfg.Orders.PollAttempts)
}

func (s *session) createOrder() {
	fmt.Println("\n--- Create Limit Order ---")
	inputMint := promptString(s.reader, "Input mint", s.cfg.Fee.DefaultInputMint)
	outputMint := promptString(s.reader, "Output mint", "")
	making := promptString(s.reader, "Making amount (base units)", strconv.FormatUint(s.cfg.Fee.DefaultMakingAmount, 10))
	taking := promptString(s.reader, "Taking amount (base units)", "")
	if outputMint == "" || taking == "" {
		fmt.Println("output mint and taking amount are required")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	created, err := s.api.createOrder(ctx, jupiter.CreateOrderRequest{
		Maker:        s.wallet(),
		InputMint:    inputMint,
		OutputMint:   outputMint,
		MakingAmount: making,
		TakingAmount: taking,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "create failed: %v\n", err)
		return
	}
	signed, err := signBase64(created.Transaction, s.key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sign failed: %v\n", err)
		return
	}
	reply, err := s.api.submitOrder(ctx, signed, created.Order, making, inputMint)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bundle failed: %v\n", err)
		return
	}
	fmt.Printf("order %s submitted in bundle %s (tx %s)\n", created.Order, reply.BundleID, reply.Signature)
}

func (s *session) listOrders() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	list, err := s.api.OpenOrders(ctx, s.wallet())
	if err != nil {
		fmt.Fprintf(os.Stderr, "list failed: %v\n", err)
		return
	}
	if len(list) == 0 {
		fmt.Println("no open orders")
		return
	}
	fmt.Println("\n--- Open Orders ---")
	for _, o := range list {
		fmt.Printf("%s  %s -> %s  making %d/%d  taking %d\n", o.ID, short(o.InputMint), short(o.OutputMint), o.RemainingMakingAmount, o.MakingAmount, o.TakingAmount)
	}
}

func (s *session) cancelOrders() {
	fmt.Println("\n--- Cancel Orders ---")
	fmt.Print("Order ids comma-separated (blank cancels all): ")
	line, _ := s.reader.ReadString('\n')
	var ids []string
	for _, p := range strings.Split(strings.TrimSpace(line), ",") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if len(ids) == 0 {
		open, err := s.api.OpenOrders(ctx, s.wallet())
		if err != nil {
			fmt.Fprintf(os.Stderr, "list failed: %v\n", err)
			return
		}
		for _, o := range open {
			ids = append(ids, o.ID)
		}
		if len(ids) == 0 {
			fmt.Println("no open orders")
			return
		}
	}

	unsigned, err := s.api.cancelOrders(ctx, jupiter.CancelOrdersRequest{Maker: s.wallet(), Orders: ids})
	if err != nil {
		fmt.Fprintf(os.Stderr, "cancel failed: %v\n", err)
		return
	}
	signed := make([]string, 0, len(unsigned))
	for _, tx := range unsigned {
		out, err := signBase64(tx, s.key)
		if err != nil {
			fmt.Fprintf(os.Stderr, "sign failed: %v\n", err)
			return
		}
		signed = append(signed, out)
	}
	reply, err := s.api.submitCancel(ctx, signed, ids, s.wallet())
	if err != nil {
		fmt.Fprintf(os.Stderr, "bundle failed: %v\n", err)
		return
	}
	fmt.Printf("cancellation bundle %s submitted, waiting for orders to leave the book...\n", reply.BundleID)

	log := util.Component(util.NewLogger("warn"), "orderctl")
	watcher := orders.NewWatcher(s.api, log,
		orders.WithInterval(time.Duration(s.cfg.Orders.PollIntervalMs)*time.Millisecond),
		orders.WithMaxAttempts(s.cfg.Orders.PollAttempts),
	)
	outcome, err := watcher.AwaitCancellation(context.Background(), s.wallet(), ids)
	switch {
	case err != nil:
		fmt.Fprintf(os.Stderr, "polling stopped: %v\n", err)
	case outcome.Confirmed:
		fmt.Printf("cancelled %d order(s) after %d check(s)\n", len(ids), outcome.Attempts)
	default:
		fmt.Printf("done polling; still listed: %s\n", strings.Join(outcome.Remaining, ", "))
	}
}

func (s *session) showBalance() {
	mint := promptString(s.reader, "Token mint (blank for SOL only)", "")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	reply, err := s.api.balance(ctx, s.wallet(), mint)
	if err != nil {
		fmt.Fprintf(os.Stderr, "balance failed: %v\n", err)
		return
	}
	fmt.Printf("SOL: %.9f\n", float64(reply.Lamports)/float64(solana.LAMPORTS_PER_SOL))
	if reply.Token != nil {
		fmt.Printf("Token: %s (%s base units, account %s)\n", reply.Token.UIAmount, reply.Token.Amount, reply.Token.Account)
	}
}

func (s *session) editSettings() {
	fmt.Println("\n--- Edit Relay / Fee ---")
	s.cfg.Relay.TipLamports = uint64(promptFloat(s.reader, "Tip lamports", float64(s.cfg.Relay.TipLamports)))
	s.cfg.Relay.MaxBundleSize = int(promptFloat(s.reader, "Max bundle size", float64(s.cfg.Relay.MaxBundleSize)))
	s.cfg.Fee.Bps = int64(promptFloat(s.reader, "Fee bps", float64(s.cfg.Fee.Bps)))
	s.cfg.Fee.Collector = promptString(s.reader, "Fee collector", s.cfg.Fee.Collector)
	s.cfg.Orders.PollAttempts = int(promptFloat(s.reader, "Cancel poll attempts", float64(s.cfg.Orders.PollAttempts)))
}

func promptString(reader *bufio.Reader, label, current string) string {
	fmt.Printf("%s [%s]: ", label, current)
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return current
	}
	return line
}

func promptFloat(reader *bufio.Reader, label string, current float64) float64 {
	fmt.Printf("%s [%.0f]: ", label, current)
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return current
	}
	val, err := strconv.ParseFloat(line, 64)
	if err != nil || val < 0 {
		fmt.Printf("invalid number, keeping %.0f\n", current)
		return current
	}
	return val
}

func short(s string) string {
	if len(s) <= 8 {
		return s
	}
	return s[:4] + ".." + s[len(s)-4:]
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// apiBase is ORDERCTL_API, else localhost on relayd's configured port.
func apiBase(cfg *config.Config) string {
	if v := os.Getenv("ORDERCTL_API"); v != "" {
		return v
	}
	addr := cfg.App.HTTPAddr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr
}

func loadConfig() (*config.Config, error) {
	return config.Load(locateConfig())
}

func saveConfig(cfg *config.Config) error {
	return config.Save(locateConfig(), cfg)
}

func locateConfig() string {
	if v := os.Getenv("JUPLIMITS_CONFIG"); v != "" {
		return filepath.Clean(v)
	}
	return filepath.Clean(defaultConfigPath)
}
