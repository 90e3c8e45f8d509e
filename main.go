// Command typerush is the TypeRush multiplayer typing race toolkit.
//
// It bundles four modes behind one binary:
//  1. "play"   - join a room from the terminal and race interactively
//  2. "bot"    - join a room and transcribe the paragraph at a fixed pace
//  3. "serve"  - run the practice server implementing the wire contract
//  4. "mcp"    - expose the race client as MCP tools over stdio
//
// plus "create", which generates a fresh invite code to share.
//
// The server URL is read from --server or the TYPERUSH_SERVER_URL
// environment variable; a .env file is honored when present.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/typerush/typerush-go/game/client"
	"github.com/typerush/typerush-go/game/race"
	"github.com/typerush/typerush-go/server"
	"github.com/typerush/typerush-go/transport/mcp"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "TypeRush"
)

func serverFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "server",
		Value:   "ws://localhost:8080/ws",
		Usage:   "TypeRush server URL (ws://, wss://, or http(s):// form)",
		Sources: cli.EnvVars("TYPERUSH_SERVER_URL"),
	}
}

func main() {
	// Load .env file if it exists (ignore error if not found)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Warning: Error loading .env file: %v", err)
		}
	}

	cmd := &cli.Command{
		Name:    "typerush",
		Usage:   "multiplayer typing race client and practice server",
		Version: Version,
		Commands: []*cli.Command{
			createCommand(),
			playCommand(),
			botCommand(),
			serveCommand(),
			mcpCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func createCommand() *cli.Command {
	return &cli.Command{
		Name:  "create",
		Usage: "generate a fresh invite code for a new room",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			code := uuid.NewString()
			fmt.Printf("Invite code: %s\n", code)
			fmt.Println("Share it, then join with: typerush play --room", code)
			return nil
		},
	}
}

func playCommand() *cli.Command {
	return &cli.Command{
		Name:  "play",
		Usage: "join a room and race from the terminal",
		Flags: []cli.Flag{
			serverFlag(),
			&cli.StringFlag{Name: "room", Usage: "invite code of the room", Required: true},
			&cli.StringFlag{Name: "name", Usage: "display name", Required: true},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			serverURL, err := normalizeServerURL(cmd.String("server"))
			if err != nil {
				return err
			}
			return runPlay(ctx, serverURL, cmd.String("room"), cmd.String("name"))
		},
	}
}

func botCommand() *cli.Command {
	return &cli.Command{
		Name:  "bot",
		Usage: "join a room and transcribe the paragraph at a fixed pace",
		Flags: []cli.Flag{
			serverFlag(),
			&cli.StringFlag{Name: "room", Usage: "invite code of the room", Required: true},
			&cli.StringFlag{Name: "name", Value: "bot", Usage: "display name"},
			&cli.IntFlag{Name: "wpm", Value: 60, Usage: "typing pace in words per minute"},
			&cli.BoolFlag{Name: "start", Usage: "start the race once the bot becomes host"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			serverURL, err := normalizeServerURL(cmd.String("server"))
			if err != nil {
				return err
			}
			return runBot(ctx, serverURL, cmd.String("room"), cmd.String("name"),
				int(cmd.Int("wpm")), cmd.Bool("start"))
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the practice server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Value: "localhost", Usage: "listen host"},
			&cli.IntFlag{Name: "port", Value: 8080, Usage: "listen port"},
			&cli.StringFlag{
				Name:    "packs-dir",
				Value:   "packs",
				Usage:   "directory of paragraph pack JSON files",
				Sources: cli.EnvVars("TYPERUSH_PACKS_DIR"),
			},
			&cli.BoolFlag{Name: "ngrok", Usage: "expose the server through an ngrok tunnel"},
			&cli.StringFlag{
				Name:    "ngrok-auth",
				Usage:   "ngrok auth token",
				Sources: cli.EnvVars("NGROK_AUTHTOKEN"),
			},
			&cli.StringFlag{
				Name:    "ngrok-domain",
				Usage:   "custom ngrok domain (optional)",
				Sources: cli.EnvVars("NGROK_DOMAIN"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			addr := fmt.Sprintf("%s:%d", cmd.String("host"), cmd.Int("port"))
			return runServe(ctx, addr, cmd.String("packs-dir"),
				cmd.Bool("ngrok"), cmd.String("ngrok-auth"), cmd.String("ngrok-domain"))
		},
	}
}

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "expose the race client as MCP tools over stdio",
		Flags: []cli.Flag{serverFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			serverURL, err := normalizeServerURL(cmd.String("server"))
			if err != nil {
				return err
			}

			log.Printf("MCP stdio server ready (racing against %s)", serverURL)
			mcpClient := mcp.NewClient(serverURL)
			return mcpserver.ServeStdio(mcpClient.GetMCPServer())
		},
	}
}

// runPlay drives an interactive terminal race. Lines are appended to the
// typing buffer; ":start", ":board", and ":quit" are commands.
func runPlay(ctx context.Context, serverURL, roomID, name string) error {
	console := &console{}

	c := client.New(serverURL)
	c.Notifier = client.NotifierFunc(func(msg string) {
		fmt.Printf("!! %s\n", msg)
	})
	c.OnChange = console.render

	if err := c.Join(ctx, roomID, name); err != nil {
		return err
	}
	defer c.Close()

	fmt.Printf("Joined room %s as %q.\n", roomID, name)
	fmt.Println("Type text and press enter to race. Commands: :start :board :quit")

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.Done():
			fmt.Println("Disconnected.")
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			switch strings.TrimSpace(line) {
			case ":quit":
				return nil
			case ":start":
				if err := c.Start(); err != nil {
					fmt.Printf("!! %v\n", err)
				}
			case ":board":
				printLeaderboard(c.Snapshot())
			default:
				buffer := c.Snapshot().Input + line
				if !c.Type(buffer) {
					fmt.Println("!! typing is only accepted while a race is in progress")
				}
			}
		}
	}
}

// console prints race milestones without repeating itself on every score
// update.
type console struct {
	lastPhase atomic.Value // race.Phase
}

func (co *console) render(snap client.Snapshot) {
	prev, _ := co.lastPhase.Load().(race.Phase)
	if snap.Phase == prev {
		return
	}
	co.lastPhase.Store(snap.Phase)

	switch snap.Phase {
	case race.PhaseInProgress:
		fmt.Println("\n=== Race started! Type this paragraph: ===")
		fmt.Println(snap.Paragraph)
	case race.PhaseFinished:
		fmt.Println("\n=== Race finished! Final standings: ===")
		printLeaderboard(snap)
	}
}

func printLeaderboard(snap client.Snapshot) {
	if len(snap.Leaderboard) == 0 {
		fmt.Println("Leaderboard: empty")
		return
	}
	for i, p := range snap.Leaderboard {
		marker := ""
		if p.ID == snap.SelfID {
			marker = " (you)"
		}
		fmt.Printf("  #%d %s%s: %.1f\n", i+1, p.Name, marker, p.Score)
	}
}

// runBot joins a room and, whenever a race starts, transcribes the shared
// paragraph at the requested pace until it finishes or the race ends.
func runBot(ctx context.Context, serverURL, roomID, name string, wpm int, autoStart bool) error {
	if wpm <= 0 {
		wpm = 60
	}

	c := client.New(serverURL)
	c.Notifier = client.NotifierFunc(func(msg string) {
		log.Printf("bot: server says: %s", msg)
	})

	var typing int32
	c.OnChange = func(snap client.Snapshot) {
		if snap.Phase == race.PhaseInProgress &&
			atomic.CompareAndSwapInt32(&typing, 0, 1) {
			go func(paragraph string) {
				defer atomic.StoreInt32(&typing, 0)
				typeParagraph(c, paragraph, wpm)
			}(snap.Paragraph)
			return
		}
		if autoStart && snap.Phase != race.PhaseInProgress &&
			snap.SelfID != "" && snap.SelfID == snap.Host {
			if err := c.Start(); err == nil {
				log.Printf("bot: requested race start")
			}
		}
	}

	if err := c.Join(ctx, roomID, name); err != nil {
		return err
	}
	defer c.Close()

	log.Printf("bot: joined room %s as %q at %d WPM", roomID, name, wpm)

	select {
	case <-ctx.Done():
		return nil
	case <-c.Done():
		log.Printf("bot: disconnected")
		return nil
	}
}

// typeParagraph feeds growing prefixes of the paragraph through the client
// at the pace of one character per keystroke interval.
func typeParagraph(c *client.RoomClient, paragraph string, wpm int) {
	interval := keystrokeInterval(wpm)
	runes := []rune(paragraph)

	for i := 1; i <= len(runes); i++ {
		if c.Snapshot().Phase != race.PhaseInProgress {
			return
		}
		c.Type(string(runes[:i]))
		time.Sleep(interval)
	}
}

// keystrokeInterval converts words per minute into a per-character delay
// using the conventional five characters per word.
func keystrokeInterval(wpm int) time.Duration {
	charsPerMinute := wpm * 5
	return time.Minute / time.Duration(charsPerMinute)
}

// runServe starts the practice server, a room cleanup routine, and an
// optional ngrok tunnel, then blocks until a shutdown signal.
func runServe(ctx context.Context, addr, packsDir string, ngrokEnabled bool, ngrokAuth, ngrokDomain string) error {
	paragraphs, err := server.NewParagraphSource(packsDir)
	if err != nil {
		return fmt.Errorf("failed to load paragraph packs: %w", err)
	}
	log.Printf("Loaded paragraph packs: %s", strings.Join(paragraphs.Packs(), ", "))

	srv := server.NewServer(paragraphs)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go roomCleanupRoutine(ctx, srv.Registry())

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("%s practice server listening on %s", AppName, addr)
		log.Printf("WebSocket: ws://%s/ws", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	if ngrokEnabled {
		go func() {
			if ngrokAuth == "" {
				log.Println("WARNING: Ngrok enabled but no auth token provided (use --ngrok-auth or NGROK_AUTHTOKEN)")
				return
			}

			log.Println("Starting ngrok tunnel...")

			var tunnel ngrokConfig.Tunnel
			if ngrokDomain != "" {
				tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(ngrokDomain))
				log.Printf("Using custom ngrok domain: %s", ngrokDomain)
			} else {
				tunnel = ngrokConfig.HTTPEndpoint()
			}

			tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(ngrokAuth))
			if err != nil {
				log.Printf("Failed to start ngrok tunnel: %v", err)
				return
			}
			defer tun.Close()

			log.Printf("Ngrok tunnel established: %s", tun.URL())
			if err := http.Serve(tun, srv); err != nil && err != http.ErrServerClosed {
				log.Printf("Ngrok server error: %v", err)
			}
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-stop:
		log.Printf("Received signal: %v. Shutting down...", sig)
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Println("Server stopped")
	return nil
}

// roomCleanupRoutine periodically reclaims rooms that have sat empty beyond
// the retention window.
func roomCleanupRoutine(ctx context.Context, registry *server.Registry) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := registry.CleanupIdle(30 * time.Minute)
			if removed > 0 {
				log.Printf("Cleaned up %d idle rooms", removed)
			}
		}
	}
}

// normalizeServerURL accepts ws://, wss://, http://, https://, or bare
// host:port forms and returns the WebSocket URL of the race endpoint. A
// missing path defaults to /ws.
func normalizeServerURL(raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("server URL must not be empty")
	}
	if !strings.Contains(raw, "://") {
		raw = "ws://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid server URL %q: %w", raw, err)
	}

	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported server URL scheme %q", u.Scheme)
	}

	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}

	return u.String(), nil
}
