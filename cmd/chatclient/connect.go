package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"building_chat/internal/chatclient"
	"building_chat/internal/protocol"
	"building_chat/internal/restclient"
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Join a building chat room and chat from stdin",
	Long: `Join the chat room of a building. Every line read from stdin is sent as a message.
Lines starting with a slash are commands:

  /typing        tell the room you are typing
  /stop          clear your typing indicator
  /read [id]     mark messages as read
  /file <url> [name]
  /status        print the connection state
  /reconnect     retry after the session gave up
  /quit`,
	RunE: runConnect,
}

func init() {
	connectCmd.Flags().StringP("building", "b", "", "building id to join (required)")
	connectCmd.Flags().String("ws-url", "", "gateway live endpoint base url (overrides chat.ws_url)")
	connectCmd.Flags().String("metrics-addr", "", "serve client metrics on this address, e.g. :9100")
	_ = connectCmd.MarkFlagRequired("building")

	rootCmd.AddCommand(connectCmd)
}

func runConnect(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if v, _ := cmd.Flags().GetString("ws-url"); v != "" {
		cfg.Chat.WSURL = v
	}
	building, _ := cmd.Flags().GetString("building")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

	log := newLogger(cmd, cfg)
	defer func() { _ = log.Sync() }()

	reg := prometheus.NewRegistry()
	if metricsAddr != "" {
		srv := &http.Server{Addr: metricsAddr, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("metrics server stopped", zap.Error(err))
			}
		}()
		defer srv.Close()
	}

	out := cmd.OutOrStdout()
	session, err := chatclient.New(chatclient.Options{
		Dialer: chatclient.NewWebSocketDialer(cfg.Chat.WSURL, cfg.Chat.Token),
		API:    restclient.New(cfg.Chat.APIURL, cfg.Chat.Token, cfg.Chat.RequestTimeout),
		Policy: chatclient.ReconnectPolicy{
			Base:        cfg.Chat.ReconnectBase,
			Cap:         cfg.Chat.ReconnectCap,
			MaxAttempts: cfg.Chat.ReconnectMaxAttempts,
		},
		TypingTTL:    cfg.Chat.TypingTTL,
		HistoryLimit: cfg.Chat.HistoryLimit,
		PingInterval: cfg.Chat.PingInterval,
		PongWait:     cfg.Chat.PongWait,
		WriteWait:    cfg.Chat.WriteWait,
		MaxFrameSize: cfg.Chat.MaxFrameSize,
		Logger:       log,
		Metrics:      chatclient.NewMetrics(reg),
		OnEvent: func(ev chatclient.Event) {
			if line := formatEvent(ev); line != "" {
				fmt.Fprintln(out, line)
			}
		},
	})
	if err != nil {
		return err
	}
	defer session.Close()

	if err := session.Activate(building); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return readLoop(ctx, session, cmd.InOrStdin(), out, cfg.Chat.RequestTimeout)
}

// readLoop 逐行讀取輸入直到 EOF、/quit 或 ctx 結束
func readLoop(ctx context.Context, s *chatclient.Session, in io.Reader, out io.Writer, timeout time.Duration) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			cmdIn, err := parseInput(line)
			if err != nil {
				fmt.Fprintln(out, "!", err)
				continue
			}
			if cmdIn.kind == inputQuit {
				return nil
			}
			if err := execute(ctx, s, cmdIn, out, timeout); err != nil {
				fmt.Fprintln(out, "!", err)
			}
		}
	}
}

type inputKind int

const (
	inputNone inputKind = iota
	inputMessage
	inputTyping
	inputStopTyping
	inputRead
	inputFile
	inputStatus
	inputReconnect
	inputQuit
)

type input struct {
	kind      inputKind
	text      string
	messageID *uint
	file      chatclient.FileAttachment
}

// parseInput 把一行輸入轉成指令；空行回傳 inputNone
func parseInput(line string) (input, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return input{kind: inputNone}, nil
	}
	if !strings.HasPrefix(line, "/") {
		return input{kind: inputMessage, text: line}, nil
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "/typing":
		return input{kind: inputTyping}, nil
	case "/stop":
		return input{kind: inputStopTyping}, nil
	case "/status":
		return input{kind: inputStatus}, nil
	case "/reconnect":
		return input{kind: inputReconnect}, nil
	case "/quit", "/exit":
		return input{kind: inputQuit}, nil
	case "/read":
		in := input{kind: inputRead}
		if len(fields) > 1 {
			id, err := strconv.ParseUint(fields[1], 10, 64)
			if err != nil || id == 0 {
				return input{}, fmt.Errorf("invalid message id %q", fields[1])
			}
			mid := uint(id)
			in.messageID = &mid
		}
		return in, nil
	case "/file":
		if len(fields) < 2 {
			return input{}, errors.New("usage: /file <url> [name]")
		}
		f := chatclient.FileAttachment{URL: fields[1]}
		if len(fields) > 2 {
			f.Name = strings.Join(fields[2:], " ")
		}
		return input{kind: inputFile, file: f}, nil
	}
	return input{}, fmt.Errorf("unknown command %s", fields[0])
}

func execute(ctx context.Context, s *chatclient.Session, in input, out io.Writer, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	switch in.kind {
	case inputMessage:
		return s.SendMessage(ctx, in.text)
	case inputFile:
		return s.SendFile(ctx, in.file)
	case inputTyping:
		return s.SetTyping(true)
	case inputStopTyping:
		return s.SetTyping(false)
	case inputRead:
		return s.MarkAsRead(in.messageID)
	case inputReconnect:
		return s.Connect()
	case inputStatus:
		snap, err := s.Snapshot()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, formatStatus(snap))
	}
	return nil
}

func formatStatus(snap chatclient.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "* %s: %s", snap.BuildingID, snap.State)
	if snap.State == chatclient.StateReconnecting {
		fmt.Fprintf(&b, " (attempt %d, retry in %s)", snap.Attempt, snap.NextRetry)
	}
	fmt.Fprintf(&b, ", %d messages, %d unread, %d participants", len(snap.Messages), snap.Unread, len(snap.Participants))
	if snap.Err != nil {
		fmt.Fprintf(&b, ", last error: %v", snap.Err)
	}
	return b.String()
}

// formatEvent 把事件轉成一行輸出；不需要顯示的事件回傳空字串
func formatEvent(ev chatclient.Event) string {
	switch ev.Kind {
	case chatclient.EventStateChanged:
		if ev.Err != nil && ev.State != chatclient.StateConnected {
			return fmt.Sprintf("* %s (%v)", ev.State, ev.Err)
		}
		return fmt.Sprintf("* %s", ev.State)
	case chatclient.EventHistoryLoaded:
		return "* history loaded"
	case chatclient.EventMessage:
		return formatMessage(ev)
	case chatclient.EventUserJoined:
		return fmt.Sprintf("* %s joined", ev.UserName)
	case chatclient.EventUserLeft:
		return fmt.Sprintf("* %s left", ev.UserName)
	case chatclient.EventTyping:
		if len(ev.Typing) == 0 {
			return ""
		}
		names := make([]string, 0, len(ev.Typing))
		for _, name := range ev.Typing {
			names = append(names, name)
		}
		slices.Sort(names)
		return fmt.Sprintf("* %s typing...", strings.Join(names, ", "))
	case chatclient.EventReadReceipt:
		return fmt.Sprintf("* read by %s", ev.UserName)
	case chatclient.EventProtocolError:
		return fmt.Sprintf("! %v", ev.Err)
	}
	return ""
}

func formatMessage(ev chatclient.Event) string {
	m := ev.Message
	if m == nil {
		return ""
	}
	ts := m.CreatedAt.Local().Format("15:04")
	switch m.MessageType {
	case protocol.MessageTypeSystem:
		return fmt.Sprintf("[%s] -- %s --", ts, m.Content)
	case protocol.MessageTypeFile:
		name := m.FileName
		if name == "" {
			name = m.FileURL
		}
		line := fmt.Sprintf("[%s] %s sent a file: %s", ts, m.SenderName, name)
		if m.Content != "" {
			line += " " + m.Content
		}
		return line
	}
	return fmt.Sprintf("[%s] %s: %s", ts, m.SenderName, m.Content)
}
