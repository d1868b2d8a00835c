// Package catalog models the bot-list records owned by the CRUD layer and
// the store interface the gateway consults. The gateway only reads:
// credential resolution during the handshake and record lookups on the
// cached HTTP read paths.
package catalog

import "context"

// Snowflake is an opaque record identifier assigned upstream.
type Snowflake = string

// Bot is a listed third-party bot. APIKey is the credential presented in
// the gateway handshake.
type Bot struct {
	ID               Snowflake `json:"id"`
	Name             string    `json:"name"`
	Avatar           *string   `json:"avatar"`
	InviteURL        string    `json:"invite_url"`
	WebsiteURL       string    `json:"website_url,omitempty"`
	SupportServer    string    `json:"support_server,omitempty"`
	SourceCode       string    `json:"source_code,omitempty"`
	ShortDescription string    `json:"short_description"`
	LongDescription  string    `json:"long_description"`
	Prefixes         []string  `json:"prefixes"`
	OwnerID          Snowflake `json:"owner_id"`
	CreatedAt        string    `json:"created_at"`
	Verified         bool      `json:"verified"`
	Tags             []string  `json:"tags"`
	Approved         bool      `json:"approved"`
	APIKey           string    `json:"api_key,omitempty"`
	Votes            []Vote    `json:"votes"`
	TeamID           string    `json:"team_id,omitempty"`
	VoteMessage      string    `json:"vote_message,omitempty"`
	WebhookURL       string    `json:"webhook_url,omitempty"`
}

// Vote aggregates one user's votes for a bot.
type Vote struct {
	Votes    int       `json:"votes"`
	UserID   Snowflake `json:"user_id"`
	LastVote string    `json:"last_vote"`
}

// User is a catalog account.
type User struct {
	ID                  Snowflake   `json:"id"`
	Username            string      `json:"username"`
	Avatar              *string     `json:"avatar"`
	Bio                 string      `json:"bio,omitempty"`
	NotificationsViewed bool        `json:"notifications_viewed"`
	BannerURL           string      `json:"banner_url,omitempty"`
	Flags               UserFlags   `json:"flags"`
	PremiumType         PremiumType `json:"premium_type"`
	Locale              string      `json:"locale,omitempty"`
}

// UserFlags is a bitfield of account badges.
type UserFlags int

const (
	FlagBugHunter UserFlags = 1 << iota
	FlagContributor
	FlagPremiumPartner
	FlagDeveloper
)

// PremiumType selects the account's paid tier.
type PremiumType int

const (
	PremiumNone PremiumType = iota
	PremiumBasic
	PremiumAdvanced
)

// Store is the read surface the gateway needs from the system of record.
// Absence is reported as (nil, nil); errors are infrastructure failures.
type Store interface {
	FindBotByAPIKey(ctx context.Context, apiKey string) (*Bot, error)
	FindBotByID(ctx context.Context, id Snowflake) (*Bot, error)
	FindUserByID(ctx context.Context, id Snowflake) (*User, error)
	CountBots(ctx context.Context) (int, error)
	CountUsers(ctx context.Context) (int, error)
}
