// Command scanner is the gate operator's terminal client. It gates entry
// behind a complete scan configuration, reads identifiers from stdin (a
// keyboard-wedge card scanner types them like a very fast operator), and
// renders each classified outcome with the person's roster profile.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"gatescan/models"
	"gatescan/scanner"
)

const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32;1m"
	colorYellow = "\033[33;1m"
	colorRed    = "\033[31;1m"
)

var serverBaseURL = "http://localhost:8080"

// printer serializes terminal output. The read loop, the submission
// goroutines and the busy indicator all print through it, so a result
// block never interleaves with a prompt or an indicator dot.
type printer struct {
	mu  sync.Mutex
	out io.Writer
}

func (p *printer) print(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprint(p.out, s)
}

func (p *printer) printf(format string, args ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, format, args...)
}

func main() {
	serverFlag := flag.String("server", "", "Override server base URL (e.g. https://gates.example.com)")
	configFlag := flag.String("config", "", "Override scan config file path")
	setupFlag := flag.Bool("setup", false, "Re-run the scan setup flow even if the saved config is complete")
	flag.Parse()

	if env := os.Getenv("GATESCAN_SERVER"); env != "" {
		serverBaseURL = strings.TrimRight(env, "/")
	}
	if *serverFlag != "" {
		serverBaseURL = strings.TrimRight(*serverFlag, "/")
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	configPath := *configFlag
	if configPath == "" {
		configPath, err = scanner.DefaultConfigPath()
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}
	}
	store := scanner.NewConfigStore(configPath)

	cfg := store.Load()
	if cfg.DeviceID == "" {
		cfg.DeviceID = scanner.NewDeviceID()
		if err := store.Save(cfg); err != nil {
			fmt.Fprintln(os.Stderr, "Error saving config:", err)
			os.Exit(1)
		}
	}

	term := &printer{out: os.Stdout}

	client := scanner.NewClient(serverBaseURL, logger)
	client.SetDeviceID(cfg.DeviceID)
	client.AddListener(busyIndicator{term: term})

	stdin := bufio.NewReader(os.Stdin)
	ctx := context.Background()

	if token := os.Getenv("GATESCAN_TOKEN"); token != "" {
		client.SetToken(token)
	} else if err := login(ctx, client, stdin); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	// The scan screen refuses to operate on an incomplete config; the
	// operator goes through setup first.
	if *setupFlag || !cfg.IsComplete() {
		cfg, err = runSetup(ctx, client, store, cfg, stdin)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Setup failed:", err)
			os.Exit(1)
		}
	}

	scanLoop(ctx, client, cfg, stdin, term)
}

func login(ctx context.Context, client *scanner.Client, stdin *bufio.Reader) error {
	fmt.Print("Username: ")
	username, err := stdin.ReadString('\n')
	if err != nil {
		return err
	}
	fmt.Print("Password: ")
	password, err := stdin.ReadString('\n')
	if err != nil {
		return err
	}

	role, err := client.Login(ctx, strings.TrimSpace(username), strings.TrimSpace(password))
	if err != nil {
		return err
	}
	fmt.Printf("Logged in (%s)\n\n", role)
	return nil
}

// runSetup walks the operator through event -> location -> gate -> roster
// and persists the selection.
func runSetup(ctx context.Context, client *scanner.Client, store *scanner.ConfigStore, cfg scanner.Config, stdin *bufio.Reader) (scanner.Config, error) {
	events, err := client.ListEvents(ctx)
	if err != nil {
		return cfg, err
	}
	if len(events) == 0 {
		return cfg, fmt.Errorf("no events configured, ask an admin to create one")
	}
	fmt.Println("Events:")
	for i, ev := range events {
		fmt.Printf("  %d) %s\n", i+1, ev.Title)
	}
	ev, err := pick(stdin, "Event", len(events))
	if err != nil {
		return cfg, err
	}
	eventID := events[ev].ID
	cfg.EventID = &eventID

	locations, err := client.ListEventLocations(ctx, eventID)
	if err != nil {
		return cfg, err
	}
	if len(locations) == 0 {
		return cfg, fmt.Errorf("event has no locations")
	}
	fmt.Println("Locations:")
	for i, loc := range locations {
		fmt.Printf("  %d) location %d on %s\n", i+1, loc.LocationID, loc.EventDate.Format("2006-01-02"))
	}
	li, err := pick(stdin, "Location", len(locations))
	if err != nil {
		return cfg, err
	}
	locationID := locations[li].ID
	cfg.EventLocationID = &locationID

	gates, err := client.ListEntryPoints(ctx, locationID)
	if err != nil {
		return cfg, err
	}
	if len(gates) == 0 {
		return cfg, fmt.Errorf("location has no entry points")
	}
	fmt.Println("Entry points:")
	for i, g := range gates {
		fmt.Printf("  %d) %s\n", i+1, g.Name)
	}
	gi, err := pick(stdin, "Entry point", len(gates))
	if err != nil {
		return cfg, err
	}
	gateID := gates[gi].ID
	cfg.EventEntryPointID = &gateID

	rosters, err := client.ListRosters(ctx)
	if err != nil {
		return cfg, err
	}
	cfg.RosterID = nil
	if len(rosters) > 0 {
		fmt.Println("Rosters (0 = no restriction):")
		for i, r := range rosters {
			fmt.Printf("  %d) %s (%s)\n", i+1, r.Name, r.Code)
		}
		ri, err := pickAllowZero(stdin, "Roster", len(rosters))
		if err != nil {
			return cfg, err
		}
		if ri >= 0 {
			rosterID := rosters[ri].ID
			cfg.RosterID = &rosterID
		}
	}

	if err := store.Save(cfg); err != nil {
		return cfg, err
	}
	fmt.Println("Scan configuration saved.")
	return cfg, nil
}

func pick(stdin *bufio.Reader, label string, n int) (int, error) {
	for {
		fmt.Printf("%s [1-%d]: ", label, n)
		line, err := stdin.ReadString('\n')
		if err != nil {
			return 0, err
		}
		i, err := strconv.Atoi(strings.TrimSpace(line))
		if err == nil && i >= 1 && i <= n {
			return i - 1, nil
		}
	}
}

func pickAllowZero(stdin *bufio.Reader, label string, n int) (int, error) {
	for {
		fmt.Printf("%s [0-%d]: ", label, n)
		line, err := stdin.ReadString('\n')
		if err != nil {
			return 0, err
		}
		i, err := strconv.Atoi(strings.TrimSpace(line))
		if err == nil && i >= 0 && i <= n {
			return i - 1, nil
		}
	}
}

// scanLoop is the scan screen. Each stdin line feeds the input machine;
// the machine fires the instant eight digits have accumulated, the
// submission runs on its own goroutine so a burst of scans stays
// responsive, and the input is cleared before the next line is read.
func scanLoop(ctx context.Context, client *scanner.Client, cfg scanner.Config, stdin *bufio.Reader, term *printer) {
	input := scanner.NewInput()
	view := scanner.NewView()

	term.print("Ready to scan. Type an 8-digit identifier, 'clear' to reset, 'quit' to exit.\n")

	for {
		line, err := stdin.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimSpace(line)

		switch line {
		case "quit", "exit":
			return
		case "", "clear":
			input.Clear()
			view.Clear()
			term.print("(cleared)\n")
			continue
		}

		identifier, fired := input.Append(line)
		if !fired {
			// Enter on a full buffer is the manual submit action; it is
			// inert on partial input.
			identifier, fired = input.Fire()
		}
		if !fired {
			term.printf("(%s — waiting for %d digits)\n", input.Value(), scanner.IdentifierLength)
			continue
		}

		if !input.BeginSubmit(identifier) {
			input.Clear()
			continue
		}

		seq := view.Begin()
		go func(identifier string, seq uint64) {
			defer input.EndSubmit(identifier)
			result := client.Resolve(ctx, cfg, identifier)
			if view.Apply(seq, result) {
				term.print(render(result))
			}
		}(identifier, seq)

		// Clear before the next read so an immediate re-scan starts a
		// fresh, independent submission.
		input.Clear()
	}
}

// render formats one result as a single block, emitted in one write so
// concurrent prompts cannot split it.
func render(r scanner.Result) string {
	var color, headline string
	switch r.State {
	case scanner.StateSuccess:
		color, headline = colorGreen, "SCANNED"
	case scanner.StateDuplicate:
		color, headline = colorYellow, "DUPLICATE"
	default:
		color, headline = colorRed, "NOT ADMITTED"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s%s%s  %s", color, headline, colorReset, r.Identifier)
	if !r.ScannedAt.IsZero() {
		fmt.Fprintf(&b, "  at %s", r.ScannedAt.Format("15:04:05"))
	}
	b.WriteString("\n")

	if r.Message != "" {
		b.WriteString("  " + r.Message + "\n")
	}
	if p := r.Profile; p != nil && p.Found {
		b.WriteString("  " + personLine(*p) + "\n")
	}
	if r.LastSeen != nil {
		fmt.Fprintf(&b, "  last seen %s\n", r.LastSeen.Format("15:04:05"))
	}
	return b.String()
}

func personLine(p models.PersonProfile) string {
	parts := []string{}
	if p.Name != nil {
		parts = append(parts, *p.Name)
	}
	if p.Age != nil {
		parts = append(parts, fmt.Sprintf("age %d", *p.Age))
	}
	if p.Group != nil {
		parts = append(parts, *p.Group)
	}
	if len(parts) == 0 {
		return p.Identifier
	}
	return strings.Join(parts, ", ")
}

// busyIndicator prints a dot while a request is in flight so the operator
// sees the device working on slow links.
type busyIndicator struct {
	term *printer
}

func (b busyIndicator) RequestStarted(op string) {
	if op == "record_scan" {
		b.term.print(".")
	}
}

func (b busyIndicator) RequestFinished(op string, err error) {
	if op == "record_scan" {
		b.term.print("\r")
	}
}
