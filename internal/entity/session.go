package entity

// Session lets a client come back without registering again.
type Session struct {
	Token    string
	PlayerID string
	GameID   string
}

// GameState is a read-only snapshot of a game used to resync a reconnecting client.
type GameState struct {
	GameID      string
	Board       Board
	Status      string
	PlayerOne   *PlayerSummary
	PlayerTwo   *PlayerSummary
	CurrentTurn string
	Winner      string
}
