// cartcli is a CLI tool for exercising cart flows against a running cartd.
// Each command performs a single operation, making it composable for scripts.
//
// Commands:
//
//	cartcli add -server URL -kitchen ID -item ID [-qty N]
//	cartcli remove -server URL -kitchen ID -item ID [-qty N]
//	cartcli get -server URL
//	cartcli clear -server URL
//	cartcli confirm -server URL
//	cartcli cancel -server URL
//	cartcli kitchen -server URL
//	cartcli watch -server URL
//
// Examples:
//
//	cartcli add -server http://localhost:8080 -kitchen k1 -item naan-01
//	cartcli add -server http://localhost:8080 -kitchen k2 -item sushi-09
//	cartcli confirm -server http://localhost:8080
//	cartcli watch -server http://localhost:8080
//
// The anonymous session id is minted on first use and persisted in a local
// SQLite file so repeated invocations hit the same server-side cart.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"kitchencart/internal/session"
	"kitchencart/internal/storage"
)

var client = &http.Client{Timeout: 30 * time.Second}

// Global flags (apply to all commands)
var (
	serverURL string
	sessionID string // explicit override; normally loaded from local store
	quiet     bool
	noColor   bool
	verbose   bool
)

// clientVersion is advertised in the Food-Client header.
const clientVersion = "1.0.0"

// ANSI color codes
var (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

func init() {
	if os.Getenv("NO_COLOR") != "" {
		disableColors()
	}
}

func disableColors() {
	colorReset, colorRed, colorGreen, colorYellow = "", "", "", ""
	colorBlue, colorCyan, colorGray, colorBold = "", "", "", ""
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "add":
		runAdd(args)
	case "remove":
		runRemove(args)
	case "get":
		runGet(args)
	case "clear":
		runClear(args)
	case "confirm":
		runConfirm(args)
	case "cancel":
		runCancel(args)
	case "kitchen":
		runKitchen(args)
	case "watch":
		runWatch(args)
	case "-h", "-help", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `cartcli - cart session test tool

Usage:
  cartcli <command> [options]

Commands:
  add       Add an item to the cart
  remove    Remove (or decrement) an item
  get       Show current cart state
  clear     Empty the cart
  confirm   Confirm a pending kitchen switch (clears cart, replays add)
  cancel    Cancel a pending kitchen switch
  kitchen   Show the remembered past kitchen
  watch     Stream live cart state over SSE

Examples:
  # Add an item, then add from another kitchen to trigger a conflict
  cartcli add -server http://localhost:8080 -kitchen k1 -item naan-01
  cartcli add -server http://localhost:8080 -kitchen k2 -item sushi-09

  # Resolve the conflict
  cartcli confirm -server http://localhost:8080

  # Follow cart state live
  cartcli watch -server http://localhost:8080

Run 'cartcli <command> -h' for command-specific options.
`)
}

// =============================================================================
// SESSION PERSISTENCE
// =============================================================================

// loadSession returns the session id to send, minting and persisting one on
// first use. An explicit -session flag bypasses the local store entirely.
func loadSession() string {
	if sessionID != "" {
		return sessionID
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	kv, err := storage.OpenSQLite(sessionDBPath())
	if err != nil {
		// Degrade to a per-invocation id rather than failing the command.
		if !quiet {
			printInfo("session store unavailable (%v), using one-shot session", err)
		}
		return session.New(storage.NewMemoryStore(), logger).SessionID()
	}

	return session.New(kv, logger).SessionID()
}

func sessionDBPath() string {
	if p := os.Getenv("CARTCLI_DB"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cartcli.db"
	}
	return filepath.Join(home, ".cartcli.db")
}

// =============================================================================
// ADD / REMOVE COMMANDS
// =============================================================================

func runAdd(args []string) {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	addGlobalFlags(fs)
	var kitchenID, itemID, source string
	var quantity int
	fs.StringVar(&kitchenID, "kitchen", "", "Kitchen ID (required)")
	fs.StringVar(&itemID, "item", "", "Item ID (required)")
	fs.IntVar(&quantity, "qty", 1, "Quantity")
	fs.StringVar(&source, "source", "MENU", "Mutation source: ITEMLIST, MENU, SUGGESTION")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: cartcli add -kitchen ID -item ID [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)
	finishGlobalFlags()

	if kitchenID == "" || itemID == "" {
		fs.Usage()
		os.Exit(1)
	}

	reqBody := map[string]interface{}{
		"kitchen_id": kitchenID,
		"item_id":    itemID,
		"quantity":   quantity,
		"source":     source,
	}

	resp, status, err := doRequest("POST", "/cart/items", reqBody)
	if err != nil {
		fatal("Failed to add item: %v", err)
	}

	if status == http.StatusConflict {
		printConflict(resp)
		os.Exit(2)
	}

	if quiet {
		fmt.Println(itemCount(resp))
	} else {
		printSuccess("Item added")
		printCartSummary(resp)
	}
}

func runRemove(args []string) {
	fs := flag.NewFlagSet("remove", flag.ExitOnError)
	addGlobalFlags(fs)
	var kitchenID, itemID string
	var quantity int
	fs.StringVar(&kitchenID, "kitchen", "", "Kitchen ID (required)")
	fs.StringVar(&itemID, "item", "", "Item ID (required)")
	fs.IntVar(&quantity, "qty", 1, "Quantity to remove")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: cartcli remove -kitchen ID -item ID [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)
	finishGlobalFlags()

	if kitchenID == "" || itemID == "" {
		fs.Usage()
		os.Exit(1)
	}

	path := "/cart/items/" + url.PathEscape(itemID) +
		"?kitchen_id=" + url.QueryEscape(kitchenID) +
		"&quantity=" + strconv.Itoa(quantity)

	resp, _, err := doRequest("DELETE", path, nil)
	if err != nil {
		fatal("Failed to remove item: %v", err)
	}

	if quiet {
		fmt.Println(itemCount(resp))
	} else {
		printSuccess("Item removed")
		printCartSummary(resp)
	}
}

// =============================================================================
// STATE COMMANDS
// =============================================================================

func runGet(args []string) {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	addGlobalFlags(fs)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: cartcli get [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)
	finishGlobalFlags()

	resp, _, err := doRequest("GET", "/cart", nil)
	if err != nil {
		fatal("Failed to get cart: %v", err)
	}

	if quiet {
		fmt.Println(itemCount(resp))
	} else {
		printSuccess("Cart retrieved")
		printCartSummary(resp)
	}
}

func runClear(args []string) {
	fs := flag.NewFlagSet("clear", flag.ExitOnError)
	addGlobalFlags(fs)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: cartcli clear [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)
	finishGlobalFlags()

	if _, _, err := doRequest("POST", "/cart/clear", nil); err != nil {
		fatal("Failed to clear cart: %v", err)
	}

	printSuccess("Cart cleared")
}

func runConfirm(args []string) {
	fs := flag.NewFlagSet("confirm", flag.ExitOnError)
	addGlobalFlags(fs)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: cartcli confirm [options]\n\nConfirms the pending kitchen switch: the old cart is emptied and\nthe blocked add is replayed against the new kitchen.\n\nOptions:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)
	finishGlobalFlags()

	resp, _, err := doRequest("POST", "/cart/conflict/confirm", nil)
	if err != nil {
		fatal("Failed to confirm: %v", err)
	}

	printSuccess("Kitchen switch confirmed")
	printCartSummary(resp)
}

func runCancel(args []string) {
	fs := flag.NewFlagSet("cancel", flag.ExitOnError)
	addGlobalFlags(fs)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: cartcli cancel [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)
	finishGlobalFlags()

	resp, _, err := doRequest("POST", "/cart/conflict/cancel", nil)
	if err != nil {
		fatal("Failed to cancel: %v", err)
	}

	printSuccess("Kitchen switch cancelled, cart unchanged")
	printCartSummary(resp)
}

func runKitchen(args []string) {
	fs := flag.NewFlagSet("kitchen", flag.ExitOnError)
	addGlobalFlags(fs)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: cartcli kitchen [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)
	finishGlobalFlags()

	resp, _, err := doRequest("GET", "/cart/kitchen", nil)
	if err != nil {
		fatal("Failed to get kitchen: %v", err)
	}

	rec, ok := resp["past_kitchen"].(map[string]interface{})
	if !ok || rec == nil {
		if quiet {
			fmt.Println("")
		} else {
			printInfo("No remembered kitchen")
		}
		return
	}

	if quiet {
		fmt.Println(rec["kitchen_id"])
	} else {
		printSuccess("Past kitchen")
		fmt.Printf("  %s%s%s (%v items)\n", colorCyan, rec["name"], colorReset, rec["item_count"])
	}
}

// =============================================================================
// WATCH COMMAND (SSE)
// =============================================================================

func runWatch(args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	addGlobalFlags(fs)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: cartcli watch [options]\n\nStreams cart state events until interrupted.\n\nOptions:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)
	finishGlobalFlags()

	req, err := http.NewRequest("GET", serverURL+"/cart/stream", nil)
	if err != nil {
		fatal("Creating request: %v", err)
	}
	setCommonHeaders(req)
	req.Header.Set("Accept", "text/event-stream")

	// No client timeout; the stream stays open until interrupted.
	streamClient := &http.Client{}
	resp, err := streamClient.Do(req)
	if err != nil {
		fatal("Connecting to stream: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		fatal("HTTP %d: %s", resp.StatusCode, string(body))
	}

	printInfo("Watching cart state (Ctrl-C to stop)...")

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		var state map[string]interface{}
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &state); err != nil {
			printWarning("bad event payload: %v", err)
			continue
		}

		fmt.Printf("\n%s── %s ──%s\n", colorGray, time.Now().Format("15:04:05"), colorReset)
		printCartSummary(state)
	}
	if err := scanner.Err(); err != nil {
		fatal("Stream error: %v", err)
	}
}

// =============================================================================
// HTTP HELPERS
// =============================================================================

// addGlobalFlags registers the flags shared by every command.
func addGlobalFlags(fs *flag.FlagSet) {
	fs.StringVar(&serverURL, "server", "http://localhost:8080", "cartd base URL")
	fs.StringVar(&sessionID, "session", "", "Session ID (default: persisted local id)")
	fs.BoolVar(&quiet, "q", false, "Quiet mode - minimal output")
	fs.BoolVar(&noColor, "no-color", false, "Disable colored output")
	fs.BoolVar(&verbose, "v", false, "Verbose - show full request/response")
}

func finishGlobalFlags() {
	if noColor {
		disableColors()
	}
}

func setCommonHeaders(req *http.Request) {
	req.Header.Set("X-Session-ID", loadSession())
	req.Header.Set("Food-Client",
		fmt.Sprintf(`version="%s", platform="cli", source="MENU"`, clientVersion))
}

// doRequest sends a JSON request and decodes a JSON response. A conflict
// response (409) is returned to the caller rather than treated as an error
// so commands can render the pending kitchen switch.
func doRequest(method, path string, body interface{}) (map[string]interface{}, int, error) {
	var reqBody io.Reader
	var reqJSON []byte

	if body != nil {
		var err error
		reqJSON, err = json.MarshalIndent(body, "", "  ")
		if err != nil {
			return nil, 0, fmt.Errorf("marshaling request: %w", err)
		}
		reqBody = bytes.NewReader(reqJSON)
	}

	reqURL := serverURL + path
	req, err := http.NewRequest(method, reqURL, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	setCommonHeaders(req)

	if !quiet && verbose {
		printRequest(method, path, reqJSON)
	}

	start := time.Now()
	resp, err := client.Do(req)
	duration := time.Since(start)

	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("reading response: %w", err)
	}

	if !quiet && verbose {
		printResponse(resp.StatusCode, respBody, duration)
	}

	var result map[string]interface{}
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &result); err != nil {
			return nil, resp.StatusCode, fmt.Errorf("parsing response: %w", err)
		}
	}

	if resp.StatusCode == http.StatusConflict && errorCode(result) == "CONFLICT_PENDING" {
		return result, resp.StatusCode, nil
	}
	if resp.StatusCode >= 400 {
		if msg := errorMessage(result); msg != "" {
			return nil, resp.StatusCode, fmt.Errorf("HTTP %d: %s", resp.StatusCode, msg)
		}
		return nil, resp.StatusCode, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	return result, resp.StatusCode, nil
}

func errorCode(resp map[string]interface{}) string {
	errObj, ok := resp["error"].(map[string]interface{})
	if !ok {
		return ""
	}
	code, _ := errObj["code"].(string)
	return code
}

func errorMessage(resp map[string]interface{}) string {
	errObj, ok := resp["error"].(map[string]interface{})
	if !ok {
		return ""
	}
	msg, _ := errObj["message"].(string)
	return msg
}

// =============================================================================
// OUTPUT HELPERS
// =============================================================================

// printConflict renders a 409 CONFLICT_PENDING envelope.
func printConflict(resp map[string]interface{}) {
	printWarning("Kitchen conflict: cart holds items from another kitchen")

	if rec, ok := resp["past_kitchen"].(map[string]interface{}); ok {
		fmt.Printf("  Current cart: %s%s%s (%v items)\n",
			colorCyan, rec["name"], colorReset, rec["item_count"])
	}
	if pending, ok := resp["pending_action"].(map[string]interface{}); ok {
		fmt.Printf("  Blocked add: item %s%s%s from kitchen %s%s%s\n",
			colorBold, pending["item_id"], colorReset,
			colorBold, pending["kitchen_id"], colorReset)
	}
	fmt.Printf("\n  Run %scartcli confirm%s to switch kitchens (empties the cart),\n", colorBold, colorReset)
	fmt.Printf("  or %scartcli cancel%s to keep the current cart.\n", colorBold, colorReset)
}

// printCartSummary renders an engine state envelope.
func printCartSummary(state map[string]interface{}) {
	snapshot, ok := state["snapshot"].(map[string]interface{})
	if !ok {
		return
	}

	lines, _ := snapshot["lines"].([]interface{})
	if len(lines) == 0 {
		fmt.Printf("  %s(cart is empty)%s\n", colorGray, colorReset)
		return
	}

	kitchenName, _ := snapshot["kitchen_name"].(string)
	if kitchenName != "" {
		open := ""
		if isOpen, _ := snapshot["kitchen_open"].(bool); !isOpen {
			open = fmt.Sprintf(" %s[closed]%s", colorRed, colorReset)
		}
		fmt.Printf("  Kitchen: %s%s%s%s\n", colorCyan, kitchenName, colorReset, open)
	}

	for _, l := range lines {
		lineMap, ok := l.(map[string]interface{})
		if !ok {
			continue
		}
		qty, _ := lineMap["quantity"].(float64)
		name, _ := lineMap["name"].(string)
		if name == "" {
			name, _ = lineMap["item_id"].(string)
		}
		price, _ := lineMap["unit_price"].(float64)

		marker := ""
		if orderable, _ := lineMap["orderable"].(bool); !orderable {
			marker = fmt.Sprintf(" %s(unavailable now)%s", colorYellow, colorReset)
		}
		fmt.Printf("    %dx %s %s%s%s\n", int(qty), name, colorGray, formatCents(price), colorReset)
		if marker != "" {
			fmt.Printf("      %s\n", strings.TrimSpace(marker))
		}
	}

	if billing, ok := snapshot["billing"].(map[string]interface{}); ok {
		if total, ok := billing["total"].(float64); ok && total > 0 {
			fmt.Printf("  Total: %s%s%s\n", colorGreen, formatCents(total), colorReset)
		}
	}

	if pending, ok := state["pending_action"].(map[string]interface{}); ok {
		fmt.Printf("  %s⚠ pending kitchen switch (blocked add: %v)%s\n",
			colorYellow, pending["item_id"], colorReset)
	}
	if inFlight, ok := state["in_flight"].([]interface{}); ok && len(inFlight) > 0 {
		fmt.Printf("  %s… syncing %d item(s)%s\n", colorGray, len(inFlight), colorReset)
	}
}

func itemCount(state map[string]interface{}) int {
	snapshot, ok := state["snapshot"].(map[string]interface{})
	if !ok {
		return 0
	}
	lines, _ := snapshot["lines"].([]interface{})
	total := 0
	for _, l := range lines {
		if lineMap, ok := l.(map[string]interface{}); ok {
			qty, _ := lineMap["quantity"].(float64)
			total += int(qty)
		}
	}
	return total
}

func printRequest(method, path string, body []byte) {
	fmt.Printf("\n%s▶ REQUEST%s %s%s %s%s\n", colorYellow, colorReset, colorBold, method, path, colorReset)
	if body != nil {
		printJSON(body, "  ")
	}
}

func printResponse(status int, body []byte, duration time.Duration) {
	statusColor := colorGreen
	if status >= 400 {
		statusColor = colorRed
	}
	fmt.Printf("\n%s◀ RESPONSE%s %s%d%s (%v)\n", colorCyan, colorReset, statusColor, status, colorReset, duration)
	printJSON(body, "  ")
}

func printJSON(data []byte, prefix string) {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, prefix, "  "); err != nil {
		fmt.Printf("%s%s\n", prefix, string(data))
		return
	}
	fmt.Println(pretty.String())
}

func printSuccess(format string, args ...interface{}) {
	if !quiet {
		fmt.Printf("%s✓ %s%s\n", colorGreen, fmt.Sprintf(format, args...), colorReset)
	}
}

func printWarning(format string, args ...interface{}) {
	fmt.Printf("%s⚠ %s%s\n", colorYellow, fmt.Sprintf(format, args...), colorReset)
}

func printInfo(format string, args ...interface{}) {
	if !quiet {
		fmt.Printf("%s→ %s%s\n", colorGray, fmt.Sprintf(format, args...), colorReset)
	}
}

func formatCents(v interface{}) string {
	switch val := v.(type) {
	case float64:
		return fmt.Sprintf("$%.2f", val/100)
	case int:
		return fmt.Sprintf("$%.2f", float64(val)/100)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s✗ %s%s\n", colorRed, fmt.Sprintf(format, args...), colorReset)
	os.Exit(1)
}
