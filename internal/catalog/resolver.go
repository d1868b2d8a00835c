package catalog

import (
	"context"

	runtimepkg "github.com/simobotlist/gateway/internal/runtime"
	"github.com/simobotlist/gateway/internal/runtime/jsoncodec"
)

// NewResolver adapts a Store to the handshake's credential resolver. The
// returned record carries the bot's public fields keyed by their JSON
// names, with the identifier split out so the handshake can project it
// under "id".
func NewResolver(store Store) runtimepkg.CatalogResolver {
	return runtimepkg.CatalogResolverFunc(func(ctx context.Context, credential string) (*runtimepkg.BotRecord, error) {
		bot, err := store.FindBotByAPIKey(ctx, credential)
		if err != nil {
			return nil, err
		}
		if bot == nil {
			return nil, nil
		}

		fields, err := botFields(bot)
		if err != nil {
			return nil, err
		}
		return &runtimepkg.BotRecord{ID: bot.ID, Fields: fields}, nil
	})
}

// botFields flattens the record through its JSON tags and strips the
// identifier, which the handshake re-attaches under its stable key.
func botFields(bot *Bot) (map[string]any, error) {
	raw, err := jsoncodec.Marshal(bot)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := jsoncodec.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	delete(fields, "id")
	return fields, nil
}
