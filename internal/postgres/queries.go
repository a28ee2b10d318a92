package postgres

const (
	queryInsertMessage = `
		INSERT INTO chat_messages (room_id, author_id, content)
		VALUES ($1, $2, $3)
		RETURNING id::text, room_id, author_id, content, created_at`

	// самые свежие сначала: индекс (room_id, created_at DESC, id DESC)
	querySelectRecent = `
		SELECT id::text, room_id, author_id, content, created_at
		FROM chat_messages
		WHERE room_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`

	querySelectProfile = `
		SELECT id, display_name, avatar_url
		FROM users
		WHERE id = $1`

	querySelectProfiles = `
		SELECT id, display_name, avatar_url
		FROM users
		WHERE id = ANY($1)`
)

// schema: минимальная схема, применяется командой migrate.
// Таблица users принадлежит auth-сервису, здесь создаётся только если её нет.
const schema = `
CREATE TABLE IF NOT EXISTS chat_messages (
    id         uuid        PRIMARY KEY DEFAULT gen_random_uuid(),
    room_id    text        NOT NULL,
    author_id  text        NOT NULL,
    content    text        NOT NULL CHECK (content <> ''),
    created_at timestamptz NOT NULL DEFAULT clock_timestamp()
);

CREATE INDEX IF NOT EXISTS chat_messages_room_recent_idx
    ON chat_messages (room_id, created_at DESC, id DESC);

CREATE TABLE IF NOT EXISTS users (
    id           text PRIMARY KEY,
    display_name text,
    avatar_url   text
);
`
