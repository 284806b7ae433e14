package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/mocklab/mockgate/internal/model"
	"github.com/mocklab/mockgate/internal/placeholder"
	"github.com/mocklab/mockgate/internal/scenario"
)

var (
	serverURL  string
	userID     string
	apiKey     string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:           "inspector",
	Short:         "Inspect mockgate traffic and templates",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var tailCmd = &cobra.Command{
	Use:   "tail <entity-id>",
	Short: "Stream live traffic of an entity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := streamURL(serverURL, args[0], userID, apiKey)
		if err != nil {
			return err
		}
		conn, resp, err := websocket.DefaultDialer.Dial(target, nil)
		if err != nil {
			if resp != nil {
				return fmt.Errorf("dial %s: %s", target, resp.Status)
			}
			return fmt.Errorf("dial %s: %w", target, err)
		}
		defer conn.Close()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-quit
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			conn.Close()
		}()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					return nil
				}
				return err
			}
			var msg model.LiveMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			if jsonOutput {
				fmt.Println(string(data))
				continue
			}
			if line := formatMessage(msg); line != "" {
				fmt.Println(line)
			}
		}
	},
}

var placeholdersCmd = &cobra.Command{
	Use:   "placeholders",
	Short: "List supported template tokens",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tokens := placeholder.Catalog()
		if jsonOutput {
			data, err := json.MarshalIndent(tokens, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TOKEN\tCATEGORY\tEXAMPLE")
		for _, t := range tokens {
			fmt.Fprintf(w, "{{%s}}\t%s\t%s\n", t.Name, t.Category, t.Example)
		}
		return w.Flush()
	},
}

var renderCmd = &cobra.Command{
	Use:   "render <template>",
	Short: "Render a response template without a request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := placeholder.New().Render(args[0], &placeholder.Context{
			Method:  http.MethodGet,
			Path:    "/",
			Headers: http.Header{},
		}, scenario.NewRand())
		fmt.Println(out)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print raw JSON")
	tailCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "mockgate base URL")
	tailCmd.Flags().StringVar(&userID, "user", "", "Viewer user id")
	tailCmd.Flags().StringVar(&apiKey, "api-key", "", "Entity API key")
	rootCmd.AddCommand(tailCmd, placeholdersCmd, renderCmd)
}

// streamURL turns the server base URL into the live subscription URL.
func streamURL(base, entityID, user, key string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http", "":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/logs/" + entityID
	q := url.Values{}
	if user != "" {
		q.Set("user_id", user)
	}
	if key != "" {
		q.Set("api_key", key)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func formatMessage(msg model.LiveMessage) string {
	switch msg.Type {
	case "connected":
		return "connected to " + msg.EntityID
	case "new_log":
		l := msg.Log
		if l == nil {
			return ""
		}
		line := fmt.Sprintf("%s %-6s %s -> %d %dms", l.Timestamp.Format("15:04:05"), l.Method, l.Path, l.ResponseCode, l.DurationMs)
		if l.ScenarioName != "" {
			line += " [" + l.ScenarioName + "]"
		}
		if l.Outcome != "" && l.Outcome != model.OutcomeServed {
			line += " " + l.Outcome
		}
		return line
	default:
		return ""
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
