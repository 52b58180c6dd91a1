// Package main provides the admin CLI entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/joho/godotenv"

	apiconnect "github.com/osa030/19voice/internal/api/connect"
)

var (
	app    = kingpin.New("19voice-admincli", "19voice admin client")
	server = app.Flag("server", "Server address").Default("http://localhost:8080").String()
	token  = app.Flag("token", "Admin token (or set ADMIN_TOKEN env)").Envar("ADMIN_TOKEN").String()

	listCmd   = app.Command("list", "List active sessions")
	listLimit = listCmd.Flag("limit", "Pending tracks shown per session").Default("5").Int()

	queueCmd   = app.Command("queue", "Show a guild's queue")
	queueGuild = queueCmd.Arg("guild-id", "Guild ID").Required().String()
	queueLimit = queueCmd.Flag("limit", "Pending tracks shown").Default("10").Int()

	skipCmd   = app.Command("skip", "Skip the current track")
	skipGuild = skipCmd.Arg("guild-id", "Guild ID").Required().String()

	pauseCmd   = app.Command("pause", "Pause playback")
	pauseGuild = pauseCmd.Arg("guild-id", "Guild ID").Required().String()

	resumeCmd   = app.Command("resume", "Resume playback")
	resumeGuild = resumeCmd.Arg("guild-id", "Guild ID").Required().String()

	stopCmd   = app.Command("stop", "Stop the session and leave voice")
	stopGuild = stopCmd.Arg("guild-id", "Guild ID").Required().String()

	autoplayCmd   = app.Command("autoplay", "Turn autoplay on or off")
	autoplayGuild = autoplayCmd.Arg("guild-id", "Guild ID").Required().String()
	autoplayMode  = autoplayCmd.Arg("mode", "on or off").Required().Enum("on", "off")

	volumeCmd   = app.Command("volume", "Set the volume")
	volumeGuild = volumeCmd.Arg("guild-id", "Guild ID").Required().String()
	volumeLevel = volumeCmd.Arg("level", "Volume in percent (0-200)").Required().Int()

	watchCmd   = app.Command("watch", "Stream session events")
	watchGuild = watchCmd.Arg("guild-id", "Guild ID (all guilds when omitted)").String()
)

var (
	headerColor  = color.New(color.Bold)
	failColor    = color.New(color.FgHiRed)
	playingColor = color.New(color.FgHiGreen)
	mutedColor   = color.New(color.FgHiBlack)
)

// eventColors highlights the event types an operator usually watches for.
var eventColors = map[string]*color.Color{
	"NOW_PLAYING":       playingColor,
	"AUTOPLAY_INJECTED": color.New(color.FgHiCyan),
	"PLAYBACK_FAILED":   failColor,
	"AUTOPLAY_FAILED":   color.New(color.FgHiYellow),
	"SESSION_DESTROYED": color.New(color.FgHiMagenta),
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if *token == "" {
		failColor.Println("Error: admin token is required (use --token or ADMIN_TOKEN env)")
		os.Exit(1)
	}

	client := apiconnect.NewAdminClient(
		http.DefaultClient,
		*server,
		connect.WithInterceptors(apiconnect.NewTokenInterceptor(*token)),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch command {
	case listCmd.FullCommand():
		err = list(ctx, client)
	case queueCmd.FullCommand():
		err = queue(ctx, client)
	case skipCmd.FullCommand():
		err = skip(ctx, client)
	case pauseCmd.FullCommand():
		err = printCommand(client.Pause(ctx, *pauseGuild))
	case resumeCmd.FullCommand():
		err = printCommand(client.Resume(ctx, *resumeGuild))
	case stopCmd.FullCommand():
		err = printCommand(client.Stop(ctx, *stopGuild))
	case autoplayCmd.FullCommand():
		err = printCommand(client.SetAutoplay(ctx, *autoplayGuild, *autoplayMode == "on"))
	case volumeCmd.FullCommand():
		err = volume(ctx, client)
	case watchCmd.FullCommand():
		err = watch(ctx, client)
	}
	if err != nil {
		failColor.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func list(ctx context.Context, client *apiconnect.AdminClient) error {
	resp, err := client.ListSessions(ctx, *listLimit)
	if err != nil {
		return err
	}
	fmt.Printf("Sessions (%d):\n", len(resp.Sessions))
	for _, s := range resp.Sessions {
		printStatus(s)
	}
	return nil
}

func queue(ctx context.Context, client *apiconnect.AdminClient) error {
	resp, err := client.GetQueue(ctx, *queueGuild, *queueLimit)
	if err != nil {
		return err
	}
	printStatus(resp.Status)
	return nil
}

func skip(ctx context.Context, client *apiconnect.AdminClient) error {
	resp, err := client.Skip(ctx, *skipGuild)
	if err != nil {
		return err
	}
	if !resp.Success {
		printFailure(resp.Code, resp.Message)
		return nil
	}
	fmt.Printf("Skipped: %s\n", formatTrack(resp.Skipped))
	switch {
	case resp.AutoplayFailed:
		fmt.Println("Autoplay found nothing and was disabled")
	case resp.Next == nil:
		fmt.Println("Queue is empty")
	case resp.Autoplay:
		fmt.Printf("Autoplay: %s\n", formatTrack(resp.Next))
	default:
		fmt.Printf("Next: %s\n", formatTrack(resp.Next))
	}
	return nil
}

func volume(ctx context.Context, client *apiconnect.AdminClient) error {
	resp, err := client.SetVolume(ctx, *volumeGuild, *volumeLevel)
	if err != nil {
		return err
	}
	if !resp.Success {
		printFailure(resp.Code, resp.Message)
		return nil
	}
	fmt.Printf("Volume set to %d%%\n", resp.Volume)
	return nil
}

func watch(ctx context.Context, client *apiconnect.AdminClient) error {
	stream, err := client.WatchEvents(ctx, *watchGuild)
	if err != nil {
		return err
	}
	defer stream.Close()

	for stream.Receive() {
		ev := stream.Msg()
		typ := fmt.Sprintf("%-18s", ev.Type)
		if c, ok := eventColors[ev.Type]; ok {
			typ = c.Sprint(typ)
		}
		line := fmt.Sprintf("%s #%d %s guild=%s", mutedColor.Sprint(ev.Timestamp.Format(time.TimeOnly)), ev.SequenceNo, typ, ev.GuildID)
		if ev.Track != nil {
			line += " track=" + formatTrack(ev.Track)
		}
		if ev.Message != "" {
			line += " message=" + ev.Message
		}
		fmt.Println(line)
	}
	if err := stream.Err(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func printCommand(resp *apiconnect.CommandResponse, err error) error {
	if err != nil {
		return err
	}
	if resp.Success {
		fmt.Println(resp.Message)
	} else {
		printFailure(resp.Code, resp.Message)
	}
	return nil
}

func printFailure(code, message string) {
	failColor.Printf("Failed [%s]: %s\n", code, message)
}

func printStatus(s apiconnect.SessionStatus) {
	headerColor.Printf("\n=== GUILD %s ===\n", s.GuildID)
	fmt.Printf("  Session ID: %s\n", s.SessionID)
	fmt.Printf("  Voice Channel: %s\n", s.ChannelID)
	fmt.Printf("  State: %s\n", s.State)
	fmt.Printf("  Created: %s (%s)\n", s.CreatedAt.Format(time.RFC3339), humanize.Time(s.CreatedAt))
	fmt.Printf("  Volume: %d%%  Paused: %v  Autoplay: %v\n", s.Volume, s.Paused, s.Autoplay)
	if s.Current != nil {
		playingColor.Printf("  Now Playing: %s\n", formatTrack(s.Current))
	} else {
		mutedColor.Println("  Nothing playing")
	}
	fmt.Printf("  Queue (%d):\n", s.PendingTotal)
	for i, t := range s.Pending {
		fmt.Printf("    %d. %s\n", i+1, formatTrack(&t))
	}
}

func formatTrack(t *apiconnect.TrackInfo) string {
	if t == nil {
		return "-"
	}
	d := time.Duration(t.DurationMs) * time.Millisecond
	length := "live"
	if d > 0 {
		length = fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
	}
	by := t.RequesterName
	if t.Autoplay {
		by = "autoplay"
	}
	if by == "" {
		return fmt.Sprintf("%s (%s) <%s>", t.Title, length, t.URI)
	}
	return fmt.Sprintf("%s (%s) <%s> by %s", t.Title, length, t.URI, by)
}
