package dispatch

import (
	"context"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
)

// Invocation is one inbound slash command invocation. The bot layer adapts
// the gateway event to this interface; tests substitute fakes.
type Invocation interface {
	// CommandName returns the invoked command's name.
	CommandName() string
	// GuildID returns the guild the invocation belongs to, or false for DMs.
	GuildID() (snowflake.ID, bool)
	// ActorID returns the invoking user.
	ActorID() snowflake.ID
	// Reply sends the initial interaction response.
	Reply(ctx context.Context, message discord.MessageCreate) error
	// Followup sends a follow-up message after an initial response exists.
	Followup(ctx context.Context, message discord.MessageCreate) error
	// Responded reports whether an initial response has been sent.
	Responded() bool
	// Data returns the slash command payload for option access.
	Data() discord.SlashCommandInteractionData
}

// Handler executes a command body. Handlers surface expected failures to the
// invoker themselves and return an error only for unexpected internal ones.
type Handler func(ctx context.Context, inv Invocation) error

// Command is one registered slash command with its gating flags. Gating is
// explicit configuration, never probed off the handler.
type Command struct {
	Create   discord.SlashCommandCreate
	DevOnly  bool
	Premium  bool
	Cooldown time.Duration // zero means the dispatcher default
	Handle   Handler
}

// Name returns the command's registered name.
func (c *Command) Name() string {
	return c.Create.Name
}

// Registry resolves command names to their configuration records.
type Registry struct {
	commands map[string]*Command
	ordered  []*Command
}

// NewRegistry creates an empty command registry.
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]*Command),
	}
}

// Register adds commands to the registry. Later registrations with the same
// name replace earlier ones.
func (r *Registry) Register(commands ...*Command) {
	for _, cmd := range commands {
		if _, exists := r.commands[cmd.Name()]; !exists {
			r.ordered = append(r.ordered, cmd)
		}

		r.commands[cmd.Name()] = cmd
	}
}

// Get resolves a command by name.
func (r *Registry) Get(name string) (*Command, bool) {
	cmd, ok := r.commands[name]
	return cmd, ok
}

// Creates returns the application command payloads for registration with
// the platform, in registration order.
func (r *Registry) Creates() []discord.ApplicationCommandCreate {
	creates := make([]discord.ApplicationCommandCreate, 0, len(r.ordered))
	for _, cmd := range r.ordered {
		creates = append(creates, cmd.Create)
	}

	return creates
}
