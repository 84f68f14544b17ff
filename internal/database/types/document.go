package types

import (
	"time"

	"github.com/uptrace/bun"
)

// GuildDocument is one named JSON document belonging to a guild.
type GuildDocument struct {
	bun.BaseModel `bun:"table:guild_documents"`

	GuildID   uint64    `bun:",pk"`                 // Discord guild ID
	Name      string    `bun:",pk"`                 // Document name (userlog, config)
	Data      string    `bun:",type:jsonb,notnull"` // Raw JSON document
	UpdatedAt time.Time `bun:",notnull"`            // When the document was last written
}
