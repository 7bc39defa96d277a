package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	SetUsername(ctx context.Context, args []string) error
	AddSighting(ctx context.Context) error
	List(ctx context.Context) error
	Show(ctx context.Context, args []string) error
	Identify(ctx context.Context, args []string) error
	Photo(ctx context.Context, args []string) error
	Species(ctx context.Context) error
	Join(ctx context.Context, args []string) error
	Say(ctx context.Context, text string) error
	Leave(ctx context.Context) error
	Sync(ctx context.Context) error
	Status(ctx context.Context) error
	InRoom() bool
}

const helpText = `Available commands:
  username <name>         set the name your sightings and messages are posted under
  add                     record a new sighting
  (l)ist                  list sightings, queued ones first
  show <id>               show a sighting with species info
  identify <id> <name>    change the identification of your own sighting
  photo <id> <path>       replace the photo of your own sighting
  species                 list known species names
  join <id>               enter the chat room of a sighting
  say <text>              post to the joined room (or just type text while in a room)
  leave                   leave the chat room
  sync                    replay queued sightings and messages now
  status                  show connectivity and queue state
  exit | quit             leave the program`

// runREPL starts a simple read–eval–print loop for the birdwatch CLI.
//
// It reads a line from reader, parses the first token as the command and
// dispatches to methods on 'a'. While a room is joined, a line that is not a
// command is posted to the room. The loop exits on EOF or when the user types
// "exit" or "quit".
//
// Handlers report their own problems; errors they return are printed here and
// never end the loop.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	prompt := interactive()
	for {
		if ctx.Err() != nil {
			return
		}
		if prompt {
			fmt.Printf("bw %s> ", statusFn())
		}
		line, err := readLine(reader)
		if err != nil {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			printlnFn(helpText)
			continue
		case "exit", "quit":
			printlnFn("Bye!")
			return
		}

		if err := dispatch(ctx, a, cmd, args, line); err != nil {
			printlnFn("Error:", err)
		}
	}
}

func dispatch(ctx context.Context, a execIface, cmd string, args []string, line string) error {
	switch cmd {
	case "username":
		return a.SetUsername(ctx, args)
	case "add":
		return a.AddSighting(ctx)
	case "l", "list":
		return a.List(ctx)
	case "show":
		return a.Show(ctx, args)
	case "identify":
		return a.Identify(ctx, args)
	case "photo":
		return a.Photo(ctx, args)
	case "species":
		return a.Species(ctx)
	case "join":
		return a.Join(ctx, args)
	case "say":
		return a.Say(ctx, strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "say")))
	case "leave":
		return a.Leave(ctx)
	case "sync":
		return a.Sync(ctx)
	case "status":
		return a.Status(ctx)
	}

	if a.InRoom() {
		return a.Say(ctx, line)
	}
	printlnFn("Unknown command:", cmd)
	return nil
}
