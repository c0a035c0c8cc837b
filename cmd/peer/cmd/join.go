package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/hilthontt/rendezvous/internal/infrastructure/logging"
	"github.com/hilthontt/rendezvous/internal/infrastructure/validate"
	"github.com/hilthontt/rendezvous/internal/peer"
	"github.com/hilthontt/rendezvous/internal/presentation/handler/rtc"
	"github.com/pion/webrtc/v4"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var (
	flagName    string
	flagTimeout time.Duration
	flagWait    bool
)

var joinCmd = &cobra.Command{
	Use:   "join <room-id>",
	Short: "Join a room and exchange a hello over a data channel",
	Example: `  rendezvous-peer join room1 --name alice
  rendezvous-peer join room1 --name bob --server https://relay.example`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validate.RoomID()(args[0]); err != nil {
			return err
		}
		return joinRoom(cmd.Context(), args[0])
	},
}

func init() {
	host, _ := os.Hostname()
	joinCmd.Flags().StringVarP(&flagName, "name", "n", host, "name sent in the hello message")
	joinCmd.Flags().DurationVar(&flagTimeout, "timeout", time.Minute, "how long to wait for the other peer")
	joinCmd.Flags().BoolVar(&flagWait, "wait", false, "stay in the room after the hello until interrupted")
}

func joinRoom(parent context.Context, roomID string) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt)
	defer stop()

	logger := logging.NewLogger(&logging.LoggerConfig{
		Logger:   "zerolog",
		Encoding: "console",
		Level:    flagLogLevel,
	})

	iceServers, err := fetchICEServers(ctx, flagServer)
	if err != nil {
		logger.Warnf("using pion defaults, could not fetch ICE servers: %v", err)
	}

	joinCtx, cancel := context.WithTimeout(ctx, flagTimeout)
	defer cancel()

	p, err := peer.Join(joinCtx, peer.Options{
		ServerURL:  flagServer,
		RoomID:     roomID,
		Name:       flagName,
		ICEServers: iceServers,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	defer p.Close()

	if len(p.Others()) == 0 {
		fmt.Printf("joined %s as %s, waiting for a peer...\n", roomID, p.ID())
	} else {
		fmt.Printf("joined %s as %s, offering to %s\n", roomID, p.ID(), strings.Join(p.Others(), ", "))
	}

	hello, err := p.WaitHello(joinCtx)
	if err != nil {
		return fmt.Errorf("no hello from peer: %w", err)
	}
	fmt.Printf("hello from %s (%s), sent %s\n", hello.Name, hello.PeerID, hello.SentAt.Format(time.RFC3339))

	if !flagWait {
		return nil
	}

	for {
		select {
		case id := <-p.Left():
			fmt.Printf("%s left the room\n", id)
		case <-p.Done():
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

func fetchICEServers(ctx context.Context, server string) ([]webrtc.ICEServer, error) {
	client := &http.Client{
		Timeout:   5 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(server, "/")+"/configRTC", nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	var cfg rtc.ConfigResponse
	if err := json.NewDecoder(resp.Body).Decode(&cfg); err != nil {
		return nil, err
	}
	return cfg.ICEServers, nil
}
