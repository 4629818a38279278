package entity

import (
	"fmt"

	"github.com/rocketscienceinc/tictactoe-duel/internal/apperror"
)

// Mark is the content of a single board cell.
type Mark uint8

const (
	MarkEmpty Mark = iota
	MarkX
	MarkO
)

const BoardSize = 9

// Board is a 3x3 grid in row-major order, cell 0 top-left, cell 8 bottom-right.
type Board [BoardSize]Mark

// WinCombos - 3 rows, 3 columns, 2 diagonals. Evaluate checks them in this order.
var WinCombos = [8][3]int{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

func (that Mark) String() string {
	switch that {
	case MarkX:
		return "X"
	case MarkO:
		return "O"
	default:
		return ""
	}
}

// Opposite - X for O and O for X. Empty stays empty.
func (that Mark) Opposite() Mark {
	switch that {
	case MarkX:
		return MarkO
	case MarkO:
		return MarkX
	default:
		return MarkEmpty
	}
}

// ParseMark - inverse of Mark.String.
func ParseMark(s string) (Mark, error) {
	switch s {
	case "X":
		return MarkX, nil
	case "O":
		return MarkO, nil
	case "":
		return MarkEmpty, nil
	default:
		return MarkEmpty, fmt.Errorf("unknown mark %q", s)
	}
}

// Result of evaluating a board.
type Result uint8

const (
	Ongoing Result = iota
	Win
	Draw
)

// Outcome is what Evaluate returns. Mark is set only for Win.
type Outcome struct {
	Result Result
	Mark   Mark
}

// ApplyMove - returns a copy of board with mark placed at position.
func ApplyMove(board Board, mark Mark, position int) (Board, error) {
	if position < 0 || position >= BoardSize {
		return board, apperror.ErrInvalidPosition.With(fmt.Sprintf("%d", position))
	}

	if board[position] != MarkEmpty {
		return board, apperror.ErrCellOccupied
	}

	board[position] = mark

	return board, nil
}

// Evaluate - reports a win for the first completed line, a draw when the board is full, ongoing otherwise.
func Evaluate(board Board) Outcome {
	for _, combo := range WinCombos {
		a, b, c := board[combo[0]], board[combo[1]], board[combo[2]]
		if a != MarkEmpty && a == b && b == c {
			return Outcome{Result: Win, Mark: a}
		}
	}

	// the game will continue until all the squares are full
	for _, cell := range board {
		if cell == MarkEmpty {
			return Outcome{Result: Ongoing}
		}
	}

	return Outcome{Result: Draw}
}

// Relabel - swaps every X with O and back.
func (that Board) Relabel() Board {
	for i, cell := range that {
		that[i] = cell.Opposite()
	}

	return that
}

// Encode - compact storage form: one character per cell, '.' for empty.
func (that Board) Encode() string {
	buf := make([]byte, BoardSize)
	for i, cell := range that {
		switch cell {
		case MarkX:
			buf[i] = 'X'
		case MarkO:
			buf[i] = 'O'
		default:
			buf[i] = '.'
		}
	}

	return string(buf)
}

// DecodeBoard - inverse of Board.Encode.
func DecodeBoard(s string) (Board, error) {
	var board Board

	if len(s) != BoardSize {
		return board, fmt.Errorf("board must have %d cells, got %d", BoardSize, len(s))
	}

	for i := range BoardSize {
		switch s[i] {
		case 'X':
			board[i] = MarkX
		case 'O':
			board[i] = MarkO
		case '.':
			board[i] = MarkEmpty
		default:
			return board, fmt.Errorf("unknown cell %q at %d", s[i], i)
		}
	}

	return board, nil
}
