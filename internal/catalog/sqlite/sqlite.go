// Package sqlite implements the catalog store on an embedded SQLite
// database. Record collections (prefixes, tags, votes) are stored as JSON
// columns; the store is the system-of-record mirror the gateway reads.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/simobotlist/gateway/internal/catalog"
	"github.com/simobotlist/gateway/internal/runtime/jsoncodec"
)

const (
	createBots = `CREATE TABLE IF NOT EXISTS bots (
    bot_id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    avatar TEXT,
    invite_url TEXT NOT NULL,
    website_url TEXT NOT NULL DEFAULT '',
    support_server TEXT NOT NULL DEFAULT '',
    source_code TEXT NOT NULL DEFAULT '',
    short_description TEXT NOT NULL,
    long_description TEXT NOT NULL,
    prefixes TEXT NOT NULL DEFAULT '[]',
    owner_id TEXT NOT NULL,
    created_at TEXT NOT NULL,
    verified INTEGER NOT NULL DEFAULT 0,
    tags TEXT NOT NULL DEFAULT '[]',
    approved INTEGER NOT NULL DEFAULT 0,
    api_key TEXT NOT NULL DEFAULT '',
    votes TEXT NOT NULL DEFAULT '[]',
    team_id TEXT NOT NULL DEFAULT '',
    vote_message TEXT NOT NULL DEFAULT '',
    webhook_url TEXT NOT NULL DEFAULT ''
);`

	createBotsAPIKeyIndex = `CREATE INDEX IF NOT EXISTS idx_bots_api_key ON bots(api_key);`

	createUsers = `CREATE TABLE IF NOT EXISTS users (
    user_id TEXT PRIMARY KEY,
    username TEXT NOT NULL,
    avatar TEXT,
    bio TEXT NOT NULL DEFAULT '',
    notifications_viewed INTEGER NOT NULL DEFAULT 0,
    banner_url TEXT NOT NULL DEFAULT '',
    flags INTEGER NOT NULL DEFAULT 0,
    premium_type INTEGER NOT NULL DEFAULT 0,
    locale TEXT NOT NULL DEFAULT ''
);`
)

// Store is a SQLite-backed catalog.Store.
type Store struct {
	db *sql.DB
}

var _ catalog.Store = (*Store)(nil)

// Open opens (creating if necessary) the database at path and ensures the
// schema exists. Use ":memory:" for an ephemeral database.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlite: database path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}

	for _, ddl := range []string{createBots, createBotsAPIKeyIndex, createUsers} {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: init schema: %w", err)
		}
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveBot inserts or replaces a bot record.
func (s *Store) SaveBot(ctx context.Context, bot catalog.Bot) error {
	prefixes, err := jsoncodec.Marshal(emptySlice(bot.Prefixes))
	if err != nil {
		return err
	}
	tags, err := jsoncodec.Marshal(emptySlice(bot.Tags))
	if err != nil {
		return err
	}
	voteList := bot.Votes
	if voteList == nil {
		voteList = []catalog.Vote{}
	}
	votes, err := jsoncodec.Marshal(voteList)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `INSERT OR REPLACE INTO bots (
    bot_id, name, avatar, invite_url, website_url, support_server,
    source_code, short_description, long_description, prefixes, owner_id,
    created_at, verified, tags, approved, api_key, votes, team_id,
    vote_message, webhook_url
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		bot.ID, bot.Name, nullable(bot.Avatar), bot.InviteURL, bot.WebsiteURL,
		bot.SupportServer, bot.SourceCode, bot.ShortDescription,
		bot.LongDescription, string(prefixes), bot.OwnerID, bot.CreatedAt,
		boolInt(bot.Verified), string(tags), boolInt(bot.Approved),
		bot.APIKey, string(votes), bot.TeamID, bot.VoteMessage,
		bot.WebhookURL)
	return err
}

// SaveUser inserts or replaces a user record.
func (s *Store) SaveUser(ctx context.Context, user catalog.User) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO users (
    user_id, username, avatar, bio, notifications_viewed, banner_url,
    flags, premium_type, locale
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Username, nullable(user.Avatar), user.Bio,
		boolInt(user.NotificationsViewed), user.BannerURL, int(user.Flags),
		int(user.PremiumType), user.Locale)
	return err
}

const selectBot = `SELECT bot_id, name, avatar, invite_url, website_url,
    support_server, source_code, short_description, long_description,
    prefixes, owner_id, created_at, verified, tags, approved, api_key,
    votes, team_id, vote_message, webhook_url FROM bots `

func (s *Store) FindBotByAPIKey(ctx context.Context, apiKey string) (*catalog.Bot, error) {
	if apiKey == "" {
		return nil, nil
	}
	return s.scanBot(s.db.QueryRowContext(ctx, selectBot+`WHERE api_key = ?`, apiKey))
}

func (s *Store) FindBotByID(ctx context.Context, id catalog.Snowflake) (*catalog.Bot, error) {
	return s.scanBot(s.db.QueryRowContext(ctx, selectBot+`WHERE bot_id = ?`, id))
}

func (s *Store) scanBot(row *sql.Row) (*catalog.Bot, error) {
	var (
		bot                   catalog.Bot
		avatar                sql.NullString
		prefixes, tags, votes string
		verified, approved    int
	)

	err := row.Scan(&bot.ID, &bot.Name, &avatar, &bot.InviteURL,
		&bot.WebsiteURL, &bot.SupportServer, &bot.SourceCode,
		&bot.ShortDescription, &bot.LongDescription, &prefixes, &bot.OwnerID,
		&bot.CreatedAt, &verified, &tags, &approved, &bot.APIKey, &votes,
		&bot.TeamID, &bot.VoteMessage, &bot.WebhookURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if avatar.Valid {
		bot.Avatar = &avatar.String
	}
	bot.Verified = verified != 0
	bot.Approved = approved != 0
	if err := jsoncodec.Unmarshal([]byte(prefixes), &bot.Prefixes); err != nil {
		return nil, fmt.Errorf("sqlite: decode prefixes for bot %s: %w", bot.ID, err)
	}
	if err := jsoncodec.Unmarshal([]byte(tags), &bot.Tags); err != nil {
		return nil, fmt.Errorf("sqlite: decode tags for bot %s: %w", bot.ID, err)
	}
	if err := jsoncodec.Unmarshal([]byte(votes), &bot.Votes); err != nil {
		return nil, fmt.Errorf("sqlite: decode votes for bot %s: %w", bot.ID, err)
	}
	return &bot, nil
}

func (s *Store) FindUserByID(ctx context.Context, id catalog.Snowflake) (*catalog.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT user_id, username, avatar, bio,
    notifications_viewed, banner_url, flags, premium_type, locale
    FROM users WHERE user_id = ?`, id)

	var (
		user          catalog.User
		avatar        sql.NullString
		viewed, flags int
		premium       int
	)
	err := row.Scan(&user.ID, &user.Username, &avatar, &user.Bio, &viewed,
		&user.BannerURL, &flags, &premium, &user.Locale)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if avatar.Valid {
		user.Avatar = &avatar.String
	}
	user.NotificationsViewed = viewed != 0
	user.Flags = catalog.UserFlags(flags)
	user.PremiumType = catalog.PremiumType(premium)
	return &user, nil
}

func (s *Store) CountBots(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM bots`)
}

func (s *Store) CountUsers(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM users`)
}

func (s *Store) count(ctx context.Context, query string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func emptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
