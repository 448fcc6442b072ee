package checkout

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
)

const defaultOrderNumberPrefix = "TS"

// OrderNumbers issues human-facing order numbers of the form PREFIX-YYMMDDNNN.
// NNN is random, so two numbers issued on the same day may collide; the
// backend id stays the authoritative key.
type OrderNumbers struct {
	prefix string
	now    func() time.Time
	suffix func() int
}

func NewOrderNumbers(prefix string) *OrderNumbers {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		prefix = defaultOrderNumberPrefix
	}
	return &OrderNumbers{
		prefix: prefix,
		now:    time.Now,
		suffix: func() int { return rand.IntN(1000) },
	}
}

func (g *OrderNumbers) Next() string {
	return fmt.Sprintf("%s-%s%03d", g.prefix, g.now().Format("060102"), g.suffix()%1000)
}
