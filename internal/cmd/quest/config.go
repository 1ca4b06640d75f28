// Package quest parses quest command flags and starts the engine runtime.
package quest

import (
	"flag"

	"github.com/nylanalyn/jeeves-quest/internal/platform/config"
)

// Config holds quest command configuration.
type Config struct {
	StoragePath     string `env:"JEEVES_QUEST_DB" envDefault:"jeeves-quest.db"`
	XPFormula       string `env:"JEEVES_QUEST_XP_FORMULA"`
	AnnounceChannel string `env:"JEEVES_QUEST_ANNOUNCE_CHANNEL" envDefault:"#quest"`
	ConsoleUser     string `env:"JEEVES_QUEST_CONSOLE_USER" envDefault:"adventurer"`
	ConsoleChannel  string `env:"JEEVES_QUEST_CONSOLE_CHANNEL" envDefault:"#quest"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.StoragePath, "db", cfg.StoragePath, "Path to the SQLite state database")
	fs.StringVar(&cfg.XPFormula, "xp-formula", cfg.XPFormula, "XP curve expression over `level`")
	fs.StringVar(&cfg.AnnounceChannel, "announce", cfg.AnnounceChannel, "Channel for boss-hunt announcements")
	fs.StringVar(&cfg.ConsoleUser, "user", cfg.ConsoleUser, "User identity for the console session")
	fs.StringVar(&cfg.ConsoleChannel, "channel", cfg.ConsoleChannel, "Channel identity for the console session")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
