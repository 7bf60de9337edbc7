package game

import "chifoumi/internal/domain"

// beats maps each move to the move it defeats.
var beats = map[domain.Move]domain.Move{
	domain.MoveRock:     domain.MoveScissors,
	domain.MovePaper:    domain.MoveRock,
	domain.MoveScissors: domain.MovePaper,
}

// ResolveTurn decides a single turn between two complete moves.
// Returns "side1", "side2" or "draw". Callers guarantee both moves are
// present and valid, so there is no error path.
func ResolveTurn(side1, side2 domain.Move) string {
	if side1 == side2 {
		return domain.ResultDraw
	}
	if beats[side1] == side2 {
		return domain.SideOne
	}
	return domain.SideTwo
}

// ResolveMatch decides a best-of-three match from exactly three resolved
// turns: the side with strictly more turn wins takes the match, any tied
// split (including 1-1-1) is a draw.
func ResolveMatch(turns []domain.Turn) string {
	var wins1, wins2 int
	for _, t := range turns {
		switch t.Winner {
		case domain.SideOne:
			wins1++
		case domain.SideTwo:
			wins2++
		}
	}

	switch {
	case wins1 > wins2:
		return domain.SideOne
	case wins2 > wins1:
		return domain.SideTwo
	default:
		return domain.ResultDraw
	}
}
