package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Arrogantx/slapper/internal/models"
	"github.com/Arrogantx/slapper/internal/types"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrMessageNotFound is returned when a chat message id has no row
var ErrMessageNotFound = errors.New("chat message not found")

// messageSelect joins the author profile; LEFT JOIN keeps messages whose profile row is gone
const messageSelect = `
	SELECT m.id, m.message, m.wallet_address, m.created_at, p.nickname, p.twitter_username
	FROM chat_messages m
	LEFT JOIN user_profiles p ON p.wallet_address = m.wallet_address
`

// ChatRepository handles TrollBox message persistence
type ChatRepository struct {
	db *PostgresDB
}

// NewChatRepository creates a new chat repository
func NewChatRepository(db *PostgresDB) *ChatRepository {
	return &ChatRepository{db: db}
}

// Recent returns up to limit messages, newest first
func (r *ChatRepository) Recent(ctx context.Context, limit int) ([]*models.ChatMessage, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive: %d", limit)
	}

	rows, err := r.db.Pool().Query(ctx, messageSelect+` ORDER BY m.created_at DESC, m.id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.ChatMessage
	for rows.Next() {
		msg, err := scanChatMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return messages, nil
}

// GetByID returns a single message with its joined author profile
func (r *ChatRepository) GetByID(ctx context.Context, id string) (*models.ChatMessage, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrMessageNotFound
	}

	msg, err := scanChatMessage(r.db.Pool().QueryRow(ctx, messageSelect+` WHERE m.id = $1`, id))
	if err != nil {
		if errors.Is(err, ErrMessageNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return msg, nil
}

// Insert stores a message. The author's profile row must already exist.
func (r *ChatRepository) Insert(ctx context.Context, wallet types.WalletAddress, body string) (*models.ChatMessage, error) {
	msg := &models.ChatMessage{
		ID:            uuid.New().String(),
		Body:          body,
		WalletAddress: types.NormalizeAddress(wallet.String()),
		CreatedAt:     time.Now().UTC(),
	}

	query := `
		INSERT INTO chat_messages (id, message, wallet_address, created_at)
		VALUES ($1, $2, $3, $4)
	`

	if _, err := r.db.Pool().Exec(ctx, query, msg.ID, msg.Body, msg.WalletAddress, msg.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}

	msg.Author = models.AuthorProfile{WalletAddress: msg.WalletAddress}
	return msg, nil
}

func scanChatMessage(row pgx.Row) (*models.ChatMessage, error) {
	var msg models.ChatMessage
	err := row.Scan(
		&msg.ID,
		&msg.Body,
		&msg.WalletAddress,
		&msg.CreatedAt,
		&msg.Author.Nickname,
		&msg.Author.TwitterUsername,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	msg.Author.WalletAddress = msg.WalletAddress
	return &msg, nil
}
