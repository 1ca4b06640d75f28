package quest

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	apperrors "github.com/nylanalyn/jeeves-quest/internal/platform/errors"
	"github.com/nylanalyn/jeeves-quest/internal/quest/engine"
)

// Console is the interactive stdin/stdout session. It doubles as the chat
// Messenger and Directory: announcements land on stdout tagged with their
// channel, and the single console identity answers every name lookup.
type Console struct {
	userID  string
	channel string
}

// NewConsole creates a console session for one user identity.
func NewConsole(userID, channel string) *Console {
	return &Console{userID: userID, channel: channel}
}

// SendLine prints an announcement line tagged with its channel.
func (c *Console) SendLine(_ context.Context, target, text string) {
	fmt.Printf("[%s] %s\n", target, text)
}

// ResolveUserID maps a display name onto the console identity.
func (c *Console) ResolveUserID(_ context.Context, displayName string) (string, error) {
	if displayName != c.userID {
		return "", apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("no user named %q", displayName))
	}
	return c.userID, nil
}

// DisplayNameFor returns the console user's name, which doubles as the ID.
func (c *Console) DisplayNameFor(_ context.Context, userID string) (string, error) {
	if userID != c.userID {
		return "", apperrors.New(apperrors.CodeNotFound, "unknown user")
	}
	return c.userID, nil
}

// Serve reads commands from stdin until EOF or context cancellation.
// persistSettings is called after each settings change.
func (c *Console) Serve(ctx context.Context, eng *engine.Engine, persistSettings func(context.Context) error) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Println("Type 'help' for commands.")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if c.dispatch(ctx, eng, persistSettings, strings.Fields(line)) {
				return nil
			}
		}
	}
}

// dispatch runs one command. It reports whether the session should end.
func (c *Console) dispatch(ctx context.Context, eng *engine.Engine, persistSettings func(context.Context) error, args []string) bool {
	if len(args) == 0 {
		return false
	}
	cmd, rest := args[0], args[1:]

	var result engine.Result
	var err error
	switch cmd {
	case "help":
		c.printHelp()
		return false
	case "exit":
		return true
	case "quest":
		difficulty := engine.DefaultDifficulty
		if len(rest) > 0 {
			difficulty = rest[0]
		}
		result, err = eng.SoloQuest(ctx, c.userID, c.channel, difficulty)
	case "fight":
		// No display name: the engine falls back to the directory.
		result, err = eng.StartOrJoinEncounter(ctx, c.userID, "", c.channel)
	case "dungeon":
		result, err = eng.AdvanceDungeon(ctx, c.userID, c.channel)
	case "continue":
		result, err = eng.ContinueDungeon(ctx, c.userID, c.channel)
	case "quit":
		result, err = eng.QuitDungeon(ctx, c.userID, c.channel)
	case "use":
		if len(rest) == 0 {
			fmt.Println("Usage: use <item>")
			return false
		}
		result, err = eng.UseItem(ctx, c.userID, c.channel, rest[0])
	case "prestige":
		result, err = eng.Prestige(ctx, c.userID, c.channel)
	case "transcend":
		result, err = eng.Transcend(ctx, c.userID, c.channel)
	case "hardcore":
		result, err = eng.EnterHardcore(ctx, c.userID, c.channel)
	case "retire":
		result, err = eng.ExitHardcore(ctx, c.userID, c.channel)
	case "stats":
		target := c.userID
		if len(rest) > 0 {
			target, err = c.ResolveUserID(ctx, rest[0])
			if err != nil {
				fmt.Println(err)
				return false
			}
		}
		result, err = eng.Stats(ctx, target, c.channel)
	case "set":
		if len(rest) < 2 {
			fmt.Println("Usage: set <path> <value>")
			return false
		}
		eng.SetSetting(rest[0], strings.Join(rest[1:], " "))
		if err := persistSettings(ctx); err != nil {
			log.Printf("quest settings persist err=%v", err)
		}
		fmt.Printf("%s = %s\n", rest[0], strings.Join(rest[1:], " "))
		return false
	default:
		fmt.Printf("Unknown command %q. Type 'help'.\n", cmd)
		return false
	}

	for _, line := range result.Lines {
		fmt.Println(line)
	}
	if err != nil && len(result.Lines) == 0 {
		fmt.Println(err)
	}
	return false
}

func (c *Console) printHelp() {
	fmt.Print(`Commands:
  quest [easy|medium|hard]   fight a solo monster
  fight                      start or join the channel encounter
  dungeon                    enter the dungeon / attempt the next room
  continue                   press on from a safe haven
  quit                       leave the dungeon at a safe haven
  use <item>                 use an inventory item
  prestige                   reset at the level cap for permanent bonuses
  transcend                  reset at max prestige, become a legend
  hardcore                   enter the hardcore ladder
  retire                     leave the hardcore ladder
  stats [name]               show a player's record
  set <path> <value>         override a setting
  exit                       end the session
`)
}
