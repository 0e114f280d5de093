package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"peertactoe/internal/bot"
	"peertactoe/internal/config"
	"peertactoe/internal/game"
	"peertactoe/internal/peer"
	"peertactoe/internal/session"
	"peertactoe/internal/sessioncode"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg := config.Load()
	log := newLogger(cfg.LogLevel)
	defer log.Sync()

	in := bufio.NewScanner(os.Stdin)

	var err error
	switch os.Args[1] {
	case "local":
		err = runLocal(in)
	case "computer":
		err = runComputer(in)
	case "demo":
		runDemo()
	case "host":
		err = runHost(in, cfg, log)
	case "join":
		err = runJoin(in, cfg, log)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: peertactoe <mode>

modes:
  local     two players at one keyboard
  computer  play against the computer
  demo      watch the computer play itself
  host      host a peer-to-peer game (share the code it prints)
  join      join a hosted game (paste the code or a #join= link)`)
}

func newLogger(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	log, err := cfg.Build()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error: building logger:", err)
		os.Exit(1)
	}
	return log
}

func render(b game.Board) string {
	var sb strings.Builder
	for i, c := range b {
		mark := strconv.Itoa(i)
		if c != game.Empty {
			mark = string(c)
		}
		sb.WriteString(" " + mark + " ")
		if (i+1)%3 == 0 {
			sb.WriteByte('\n')
			if i < 8 {
				sb.WriteString("---+---+---\n")
			}
		} else {
			sb.WriteByte('|')
		}
	}
	return sb.String()
}

func announce(status game.Status) {
	switch status {
	case game.StatusXWins:
		fmt.Println("X wins!")
	case game.StatusOWins:
		fmt.Println("O wins!")
	case game.StatusDraw:
		fmt.Println("It's a draw.")
	}
}

func readCell(in *bufio.Scanner, s game.State) (int, bool) {
	for {
		fmt.Printf("%s to move (0-8, q to quit): ", game.CurrentPlayer(s))
		if !in.Scan() {
			return 0, false
		}
		text := strings.TrimSpace(in.Text())
		if text == "q" {
			return 0, false
		}
		cell, err := strconv.Atoi(text)
		if err != nil || !game.IsCellEmpty(s, cell) {
			fmt.Println("pick an empty cell between 0 and 8")
			continue
		}
		return cell, true
	}
}

func runLocal(in *bufio.Scanner) error {
	s := game.NewState()
	for game.GetStatus(s) == game.StatusPlaying {
		fmt.Println(render(s.Board))
		cell, ok := readCell(in, s)
		if !ok {
			return nil
		}
		next, err := game.Apply(s, cell)
		if err != nil {
			fmt.Println(err)
			continue
		}
		s = next
	}
	fmt.Println(render(s.Board))
	announce(game.GetStatus(s))
	return nil
}

func runComputer(in *bufio.Scanner) error {
	b := bot.New()
	s := game.NewState()
	for game.GetStatus(s) == game.StatusPlaying {
		var cell int
		if game.CurrentPlayer(s) == game.PlayerX {
			fmt.Println(render(s.Board))
			c, ok := readCell(in, s)
			if !ok {
				return nil
			}
			cell = c
		} else {
			c, ok := b.ChooseMove(s)
			if !ok {
				break
			}
			cell = c
			fmt.Printf("computer plays %d\n", cell)
		}
		next, err := game.Apply(s, cell)
		if err != nil {
			fmt.Println(err)
			continue
		}
		s = next
	}
	fmt.Println(render(s.Board))
	announce(game.GetStatus(s))
	return nil
}

func runDemo() {
	b := bot.New()
	s := game.NewState()
	for game.GetStatus(s) == game.StatusPlaying {
		cell, ok := b.ChooseMove(s)
		if !ok {
			break
		}
		s, _ = game.Apply(s, cell)
		fmt.Printf("%s\n", render(s.Board))
	}
	announce(game.GetStatus(s))
}

// remoteUI bridges session callbacks to the prompt loop below. Callbacks
// run on the session goroutine; everything crosses via channels.
type remoteUI struct {
	notify       chan struct{} // something changed, re-read the snapshot
	connected    chan string
	disconnected chan string
	errs         chan string
}

func newRemoteUI() *remoteUI {
	return &remoteUI{
		notify:       make(chan struct{}, 16),
		connected:    make(chan string, 1),
		disconnected: make(chan string, 4),
		errs:         make(chan string, 4),
	}
}

func (ui *remoteUI) ping() {
	select {
	case ui.notify <- struct{}{}:
	default:
	}
}

func (ui *remoteUI) callbacks() session.Callbacks {
	return session.Callbacks{
		OnRemoteMove: func(cell int) {
			fmt.Printf("\nopponent plays %d\n", cell)
			ui.ping()
		},
		OnRematchRequested: func() {
			fmt.Println("\nopponent wants a rematch (r to accept, q to quit)")
			ui.ping()
		},
		OnRematchResponse: func(accepted bool) {
			if accepted {
				fmt.Println("\nrematch accepted, new game")
			} else {
				fmt.Println("\nrematch declined")
			}
			ui.ping()
		},
		OnConnected:    func(name string) { ui.connected <- name },
		OnDisconnected: func(reason string) { ui.disconnected <- reason; ui.ping() },
		OnError:        func(msg string) { ui.errs <- msg; ui.ping() },
	}
}

func runHost(in *bufio.Scanner, cfg config.Config, log *zap.Logger) error {
	ctx := context.Background()
	ui := newRemoteUI()
	match := game.NewMatch()

	fmt.Println("assembling connection offer (this can take a few seconds)...")
	sess, code, err := session.CreateSession(ctx, cfg.PlayerName, match, peer.Config{STUNServers: cfg.STUNServers}, ui.callbacks(), log)
	if err != nil {
		return err
	}
	defer sess.Close()

	fmt.Println("\nshare this code with your opponent:")
	fmt.Println(code)
	fmt.Println("\nor as a link fragment:")
	fmt.Println(sessioncode.WithJoinCode("https://peertactoe.example", code))

	fmt.Print("\npaste their answer code: ")
	if !in.Scan() {
		sess.Leave()
		return nil
	}
	answer := strings.TrimSpace(in.Text())
	if fromURL, ok := sessioncode.ExtractFromURL(answer); ok {
		answer = fromURL
	}
	if err := sess.CompleteHostConnection(answer); err != nil {
		sess.Leave()
		return err
	}

	return playRemote(in, sess, ui)
}

func runJoin(in *bufio.Scanner, cfg config.Config, log *zap.Logger) error {
	ctx := context.Background()
	ui := newRemoteUI()
	match := game.NewMatch()

	fmt.Print("paste the host's code: ")
	if !in.Scan() {
		return nil
	}
	code := strings.TrimSpace(in.Text())
	if fromURL, ok := sessioncode.ExtractFromURL(code); ok {
		code = fromURL
	}

	fmt.Println("assembling answer (this can take a few seconds)...")
	sess, answerCode, err := session.JoinSession(ctx, code, cfg.PlayerName, match, peer.Config{STUNServers: cfg.STUNServers}, ui.callbacks(), log)
	if err != nil {
		return err
	}
	defer sess.Close()

	fmt.Println("\nsend this answer code back to the host:")
	fmt.Println(answerCode)

	return playRemote(in, sess, ui)
}

func playRemote(in *bufio.Scanner, sess *session.Session, ui *remoteUI) error {
	fmt.Println("\nwaiting for the connection...")
	select {
	case name := <-ui.connected:
		fmt.Printf("connected to %s\n", name)
	case reason := <-ui.disconnected:
		return fmt.Errorf("connection lost: %s", reason)
	case msg := <-ui.errs:
		return fmt.Errorf("session error: %s", msg)
	}

	lines := readLines(in)

	for {
		snap := sess.Snapshot()
		if snap.Status == session.StatusDisconnected {
			if snap.Err != "" {
				return fmt.Errorf("session error: %s", snap.Err)
			}
			fmt.Println("opponent disconnected")
			return nil
		}

		fmt.Println(render(snap.Board))

		switch {
		case snap.GameStatus != game.StatusPlaying:
			announce(snap.GameStatus)
			fmt.Print("r for a rematch, q to quit: ")
			text, ok := waitLine(lines, ui)
			if !ok {
				continue
			}
			switch strings.TrimSpace(text) {
			case "r":
				if snap.PendingRematchFromRemote {
					sess.RespondToRematch(true)
				} else {
					sess.RequestRematch()
					fmt.Println("rematch requested, waiting for the opponent...")
				}
			case "q":
				sess.Leave()
				return nil
			}

		case snap.Turn == snap.Local.Symbol:
			fmt.Printf("your move, %s (0-8, q to quit): ", snap.Local.Symbol)
			text, ok := waitLine(lines, ui)
			if !ok {
				continue
			}
			text = strings.TrimSpace(text)
			if text == "q" {
				sess.Leave()
				return nil
			}
			cell, err := strconv.Atoi(text)
			if err != nil {
				fmt.Println("pick an empty cell between 0 and 8")
				continue
			}
			sess.SendMove(cell)
			// the snapshot on the next pass shows whether it landed

		default:
			fmt.Println("waiting for the opponent...")
			select {
			case <-ui.notify:
			case <-time.After(time.Second):
			}
		}
	}
}

// readLines pumps stdin into a channel so the play loop can react to the
// opponent while waiting for input.
func readLines(in *bufio.Scanner) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		for in.Scan() {
			lines <- in.Text()
		}
	}()
	return lines
}

// waitLine waits for local input but wakes up on session activity so the
// prompt can be redrawn against fresh state.
func waitLine(lines <-chan string, ui *remoteUI) (string, bool) {
	select {
	case text, ok := <-lines:
		if !ok {
			return "q", true
		}
		return text, true
	case <-ui.notify:
		return "", false
	}
}
