package matchmaker

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrUnknownUser is returned when a username has no stored record.
var ErrUnknownUser = errors.New("unknown user")

// User is one stored credential record. Password holds the argon2id
// hash in PHC string form, never the cleartext.
type User struct {
	UUID     uuid.UUID
	Name     string
	Password string
}

func (u User) String() string {
	return fmt.Sprintf("User: %s: %s", u.Name, u.UUID)
}

// Store persists user records in a sqlite database. Session state is
// deliberately not persisted; only credentials live here.
type Store struct {
	db *sql.DB
}

// OpenStore opens (and if needed initializes) the database at path.
// Use ":memory:" for an ephemeral store.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	// modernc.org/sqlite serializes writes itself but an in-memory
	// database exists per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS users (
		uuid TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateUser inserts a new user with a freshly hashed password and
// returns its assigned id.
func (s *Store) CreateUser(name, password string) (uuid.UUID, error) {
	hash, err := hashPassword(password)
	if err != nil {
		return uuid.Nil, err
	}

	id := uuid.New()
	if _, err := s.db.Exec(
		`INSERT INTO users (uuid, name, password) VALUES (?, ?, ?)`,
		id.String(), name, hash,
	); err != nil {
		return uuid.Nil, fmt.Errorf("inserting user %q: %w", name, err)
	}
	return id, nil
}

// FindUserByName returns the record stored for name, or ErrUnknownUser.
func (s *Store) FindUserByName(name string) (User, error) {
	var u User
	var id string
	err := s.db.QueryRow(
		`SELECT uuid, name, password FROM users WHERE name = ?`, name,
	).Scan(&id, &u.Name, &u.Password)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUnknownUser
	}
	if err != nil {
		return User{}, fmt.Errorf("querying user %q: %w", name, err)
	}
	u.UUID, err = uuid.Parse(id)
	if err != nil {
		return User{}, fmt.Errorf("stored uuid for %q: %w", name, err)
	}
	return u, nil
}

// DeleteUser removes name from the store. Deleting an absent user is
// not an error.
func (s *Store) DeleteUser(name string) error {
	if _, err := s.db.Exec(`DELETE FROM users WHERE name = ?`, name); err != nil {
		return fmt.Errorf("deleting user %q: %w", name, err)
	}
	return nil
}

// SetPassword replaces the stored hash for the user id.
func (s *Store) SetPassword(id uuid.UUID, password string) error {
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(
		`UPDATE users SET password = ? WHERE uuid = ?`, hash, id.String(),
	); err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	return nil
}

// ListUsers returns every stored user, ordered by name.
func (s *Store) ListUsers() ([]User, error) {
	rows, err := s.db.Query(`SELECT uuid, name, password FROM users ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		var id string
		if err := rows.Scan(&id, &u.Name, &u.Password); err != nil {
			return nil, err
		}
		if u.UUID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
