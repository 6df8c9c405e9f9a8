package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/mvonline/hokmv2/internal/gameclient"
	"github.com/mvonline/hokmv2/internal/gamestate"
	"github.com/mvonline/hokmv2/internal/hokm"
	"github.com/phuslu/log"
)

type Config struct {
	ServerURL string `envconfig:"SERVER_URL" default:"ws://127.0.0.1:8080/ws"`
}

func loadConfig() (*Config, error) {
	config := new(Config)
	if err := envconfig.Process("", config); err != nil {
		return nil, err
	}
	return config, nil
}

func configureLogger() *log.Logger {
	logger := log.DefaultLogger

	logger.Level = log.WarnLevel
	logger.TimeFormat = "15:04:05"
	logger.Writer = &log.ConsoleWriter{
		ColorOutput:    true,
		QuoteString:    true,
		EndWithMessage: true,
	}

	return &logger
}

func renderTable(st hokm.GameState) {
	fmt.Printf("\n== phase %s", st.Phase)
	if st.TrumpSuit != "" {
		fmt.Printf(" | trump %s", st.TrumpSuit)
	}
	fmt.Printf(" | score %d-%d | hakem seat %d ==\n", st.Scores[0], st.Scores[1], st.Hakem)
	for _, p := range st.Players {
		marker := " "
		if p.ID == st.CurrentTrick.TurnOwner {
			marker = "*"
		}
		fmt.Printf("%s seat %d: %d cards, %d tricks", marker, p.ID, p.HandSize, p.WonTricks)
		if p.ID == st.LocalPlayerID {
			fmt.Print(" (you)")
		}
		fmt.Println()
	}
	if len(st.CurrentTrick.CardsPlayed) > 0 {
		fmt.Print("  table:")
		for _, play := range st.CurrentTrick.CardsPlayed {
			fmt.Printf(" [%d] %s", play.Seat, play.Card)
		}
		fmt.Println()
	}
	if local := st.Player(st.LocalPlayerID); local != nil && len(local.Hand) > 0 {
		fmt.Print("  hand:")
		for _, c := range local.Hand {
			fmt.Printf(" %s,", c)
		}
		fmt.Println()
	}
	fmt.Print("> ")
}

func parseSuit(s string) (hokm.Suit, bool) {
	for _, suit := range hokm.Suits() {
		if strings.EqualFold(s, string(suit)) {
			return suit, true
		}
	}
	return "", false
}

func parseRank(s string) (hokm.Rank, bool) {
	for _, rank := range hokm.Ranks() {
		if strings.EqualFold(s, string(rank)) {
			return rank, true
		}
	}
	return "", false
}

func dispatch(client *gameclient.Client, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	switch strings.ToLower(fields[0]) {
	case "ready":
		return client.Ready()
	case "trump":
		if len(fields) != 2 {
			return fmt.Errorf("usage: trump <suit>")
		}
		suit, ok := parseSuit(fields[1])
		if !ok {
			return fmt.Errorf("unknown suit %q", fields[1])
		}
		return client.ChooseTrump(suit)
	case "play":
		if len(fields) != 3 {
			return fmt.Errorf("usage: play <rank> <suit>")
		}
		rank, ok := parseRank(fields[1])
		if !ok {
			return fmt.Errorf("unknown rank %q", fields[1])
		}
		suit, ok := parseSuit(fields[2])
		if !ok {
			return fmt.Errorf("unknown suit %q", fields[2])
		}
		return client.PlayCard(hokm.Card{Rank: rank, Suit: suit})
	default:
		return fmt.Errorf("commands: ready | trump <suit> | play <rank> <suit> | quit")
	}
}

func erringMain() error {
	config, err := loadConfig()
	if err != nil {
		return fmt.Errorf("could not process config: %w", err)
	}

	logger := configureLogger()

	store := gamestate.NewStore(logger)
	store.Subscribe(renderTable)

	client := gameclient.New(gameclient.Config{URL: config.ServerURL}, store, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client.Connect(ctx)
	defer client.Disconnect()

	go func() {
		for ev := range client.Events() {
			switch ev.Kind {
			case gameclient.EventConnected:
				fmt.Println("connected")
			case gameclient.EventConnectionLost:
				fmt.Println("connection lost, reconnecting...")
			case gameclient.EventServerError:
				fmt.Printf("server rejected %s: %s\n> ", ev.RelatedAction, ev.Reason)
			case gameclient.EventGaveUp:
				fmt.Println("could not reach the server, giving up")
			}
		}
	}()

	fmt.Printf("joining %s\n> ", config.ServerURL)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.EqualFold(strings.TrimSpace(line), "quit") {
			return nil
		}
		if err := dispatch(client, line); err != nil {
			fmt.Printf("%v\n> ", err)
			continue
		}
		fmt.Print("> ")
	}
	return scanner.Err()
}

func main() {
	if err := erringMain(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
