package selfplay

import (
	"log/slog"

	"github.com/brensch/snekstep/game"
)

// PrintBoard logs the board from the first snake's point of view.
func PrintBoard(log *slog.Logger, b *game.Board, turn int) {
	you := ""
	if len(b.Snakes) > 0 {
		you = b.Snakes[0].ID
	}
	log.Info("board", "turn", turn, "render", "\n"+game.Render(b, you))
}
