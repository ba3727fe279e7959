package naming

import (
	"log/slog"
	"strings"
	"unicode"
)

// Namer converts GraphQL type names into default SQL table names.
type Namer struct {
	config Config
	logger *slog.Logger
}

// New creates a Namer with the given configuration
func New(cfg Config, logger *slog.Logger) *Namer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PluralOverrides == nil {
		cfg.PluralOverrides = map[string]string{}
	}
	return &Namer{
		config: cfg,
		logger: logger,
	}
}

// Default returns a Namer with default configuration
func Default() *Namer {
	return New(DefaultConfig(), nil)
}

// TableName derives the default table for a GraphQL type name.
// Example: "BlogPost" -> "blog_posts", "Person" -> "people"
func (n *Namer) TableName(typeName string) string {
	snake := ToSnakeCase(typeName)
	if snake == "" {
		return ""
	}
	table := n.Pluralize(snake)
	n.logger.Debug("derived default table name",
		slog.String("type", typeName),
		slog.String("table", table),
	)
	return table
}

// ToSnakeCase converts PascalCase or camelCase to snake_case, keeping
// acronyms together.
// Example: "HTTPRequestLog" -> "http_request_log", "userID" -> "user_id"
func ToSnakeCase(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && runes[i-1] != '_' {
				prevLower := unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if prevLower || (unicode.IsUpper(runes[i-1]) && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
