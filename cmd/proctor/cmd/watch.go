package cmd

import (
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/teslashibe/go-proctor/pkg/proctor"
	"github.com/teslashibe/go-proctor/pkg/protocol"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream live events from the running server",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

func init() {
	addServerFlag(watchCmd)
	rootCmd.AddCommand(watchCmd)
}

// eventsURL turns the daemon base URL into its event websocket URL.
func eventsURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/events"
	return u.String(), nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	client, err := api()
	if err != nil {
		printError("Config", err)
		return err
	}
	wsURL, err := eventsURL(client.Base())
	if err != nil {
		printError("Server address", err)
		return err
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		printError("Connect", err)
		return err
	}
	defer conn.Close()

	fmt.Printf("👀 Watching %s (Ctrl+C to stop)\n", wsURL)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	go func() {
		<-sigs
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			fmt.Println("🔌 Disconnected")
			return nil
		}
		msg, err := protocol.ParseMessage(data)
		if err != nil || msg.Type != protocol.TypeEvent {
			continue
		}
		ev, err := msg.GetEvent()
		if err != nil {
			continue
		}
		printEvent(*ev)
	}
}

var eventIcons = map[proctor.EventType]string{
	proctor.EventMovement:  "↔️ ",
	proctor.EventMultiface: "👥",
	proctor.EventSound:     "🔊",
	proctor.EventPhoto:     "📸",
}

func printEvent(ev proctor.Event) {
	icon, ok := eventIcons[ev.Type]
	if !ok {
		icon = "•"
	}
	line := fmt.Sprintf("%s %s %-9s", ev.At.Local().Format("15:04:05"), icon, ev.Type)
	if ev.Type.Counted() {
		line += fmt.Sprintf(" count=%d", ev.Count)
	}
	if ev.Artifact != "" {
		line += " " + ev.Artifact
	}
	fmt.Println(line)
}
