package db

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type Posting struct {
	ID          pgtype.UUID
	ClientID    pgtype.UUID
	Title       string
	Description string
	Skills      []string
	Location    string
	Salary      int64
	JobType     string
	Status      string
	CreatedAt   pgtype.Timestamptz
	ClosedAt    pgtype.Timestamptz
}

type Application struct {
	ID        pgtype.UUID
	PostingID pgtype.UUID
	WorkerID  pgtype.UUID
	ClientID  pgtype.UUID
	CoverNote string
	CreatedAt pgtype.Timestamptz
}

type JobProgress struct {
	JobID             pgtype.UUID
	PostingID         pgtype.UUID
	ApplicationID     pgtype.UUID
	ClientID          pgtype.UUID
	WorkerID          pgtype.UUID
	Amount            int64
	CurrentStage      int16
	Review            string
	Rating            int16
	PaymentProcessing bool
	PaymentAttempt    int32
	LastPaymentError  string
	StageSixClosedBy  string
	Version           int64
	History           []byte
	CreatedAt         pgtype.Timestamptz
	LastUpdate        pgtype.Timestamptz
	ClosedAt          pgtype.Timestamptz
}
