package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CreateBook inserts a book and its authors/genres/tags in one
// transaction and returns the assigned ID.
func (s *Store) CreateBook(ctx context.Context, b Book) (int64, error) {
	now := time.Now()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = b.CreatedAt
	}

	var id int64
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
INSERT INTO books (title, subtitle, description, isbn10, isbn13, asin, publication_date,
    publisher, language, page_count, rating_avg, rating_count, series, series_position,
    file_count, total_file_size, created_at, updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			b.Title, nullStr(b.Subtitle), nullStr(b.Description), nullStr(b.ISBN10), nullStr(b.ISBN13),
			nullStr(b.ASIN), nullStr(b.PublicationDate), nullStr(b.Publisher), nullStr(b.Language),
			nullIntPtr(b.PageCount), nullFloat(b.RatingAvg), b.RatingCount, nullStr(b.Series),
			nullFloat(b.SeriesPosition), b.FileCount, b.TotalFileSize,
			b.CreatedAt.Unix(), b.UpdatedAt.Unix())
		if err != nil {
			return fmt.Errorf("insert book: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return err
		}
		if err := replaceBookAuthors(ctx, tx, id, b.Authors); err != nil {
			return err
		}
		if err := replaceBookGenres(ctx, tx, id, b.Genres); err != nil {
			return err
		}
		return replaceBookTags(ctx, tx, id, b.Tags)
	})
	return id, err
}

// GetBook loads a single book by ID, including its authors/genres/tags.
func (s *Store) GetBook(ctx context.Context, id int64) (*Book, error) {
	books, err := s.queryBooks(ctx, `WHERE b.id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(books) == 0 {
		return nil, sql.ErrNoRows
	}
	return &books[0], nil
}

// FindBookByISBN looks up a book by ISBN-13 or ISBN-10, returning
// sql.ErrNoRows if neither matches.
func (s *Store) FindBookByISBN(ctx context.Context, isbn13, isbn10 string) (*Book, error) {
	books, err := s.queryBooks(ctx, `WHERE (b.isbn13 = ? AND ? != '') OR (b.isbn10 = ? AND ? != '')`,
		isbn13, isbn13, isbn10, isbn10)
	if err != nil {
		return nil, err
	}
	if len(books) == 0 {
		return nil, sql.ErrNoRows
	}
	return &books[0], nil
}

// ListBooks returns all books ordered by id, used by the dedup scan
// to enumerate candidates.
func (s *Store) ListBooks(ctx context.Context) ([]Book, error) {
	return s.queryBooks(ctx, `ORDER BY b.id`)
}

// UpdateBook persists changed scalar fields and replaces the
// authors/genres/tags join rows.
func (s *Store) UpdateBook(ctx context.Context, b Book) error {
	b.UpdatedAt = time.Now()
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
UPDATE books SET title=?, subtitle=?, description=?, isbn10=?, isbn13=?, asin=?,
    publication_date=?, publisher=?, language=?, page_count=?, rating_avg=?, rating_count=?,
    series=?, series_position=?, file_count=?, total_file_size=?, updated_at=?
WHERE id=?`,
			b.Title, nullStr(b.Subtitle), nullStr(b.Description), nullStr(b.ISBN10), nullStr(b.ISBN13),
			nullStr(b.ASIN), nullStr(b.PublicationDate), nullStr(b.Publisher), nullStr(b.Language),
			nullIntPtr(b.PageCount), nullFloat(b.RatingAvg), b.RatingCount, nullStr(b.Series),
			nullFloat(b.SeriesPosition), b.FileCount, b.TotalFileSize, b.UpdatedAt.Unix(), b.ID)
		if err != nil {
			return fmt.Errorf("update book %d: %w", b.ID, err)
		}
		if err := replaceBookAuthors(ctx, tx, b.ID, b.Authors); err != nil {
			return err
		}
		if err := replaceBookGenres(ctx, tx, b.ID, b.Genres); err != nil {
			return err
		}
		return replaceBookTags(ctx, tx, b.ID, b.Tags)
	})
}

// DeleteBook removes a book and its join rows (cascaded by the schema).
func (s *Store) DeleteBook(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id)
	return err
}

func replaceBookAuthors(ctx context.Context, tx *sql.Tx, bookID int64, authors []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM book_authors WHERE book_id = ?`, bookID); err != nil {
		return err
	}
	for i, a := range authors {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO book_authors (book_id, position, name) VALUES (?,?,?)`, bookID, i, a); err != nil {
			return err
		}
	}
	return nil
}

func replaceBookGenres(ctx context.Context, tx *sql.Tx, bookID int64, genres []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM book_genres WHERE book_id = ?`, bookID); err != nil {
		return err
	}
	for _, g := range genres {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO book_genres (book_id, genre) VALUES (?,?)`, bookID, g); err != nil {
			return err
		}
	}
	return nil
}

func replaceBookTags(ctx context.Context, tx *sql.Tx, bookID int64, tags []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM book_tags WHERE book_id = ?`, bookID); err != nil {
		return err
	}
	for _, t := range tags {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO book_tags (book_id, tag) VALUES (?,?)`, bookID, t); err != nil {
			return err
		}
	}
	return nil
}

type bookRow struct {
	ID              int64
	Title           string
	Subtitle        sql.NullString
	Description     sql.NullString
	ISBN10          sql.NullString
	ISBN13          sql.NullString
	ASIN            sql.NullString
	PublicationDate sql.NullString
	Publisher       sql.NullString
	Language        sql.NullString
	PageCount       sql.NullInt64
	RatingAvg       sql.NullFloat64
	RatingCount     int
	Series          sql.NullString
	SeriesPosition  sql.NullFloat64
	FileCount       int
	TotalFileSize   int64
	CreatedAt       int64
	UpdatedAt       int64
}

func (r bookRow) toBook() Book {
	return Book{
		ID:              r.ID,
		Title:           r.Title,
		Subtitle:        r.Subtitle.String,
		Description:     r.Description.String,
		ISBN10:          r.ISBN10.String,
		ISBN13:          r.ISBN13.String,
		ASIN:            r.ASIN.String,
		PublicationDate: r.PublicationDate.String,
		Publisher:       r.Publisher.String,
		Language:        r.Language.String,
		PageCount:       int(r.PageCount.Int64),
		RatingAvg:       r.RatingAvg.Float64,
		RatingCount:     r.RatingCount,
		Series:          r.Series.String,
		SeriesPosition:  r.SeriesPosition.Float64,
		FileCount:       r.FileCount,
		TotalFileSize:   r.TotalFileSize,
		CreatedAt:       time.Unix(r.CreatedAt, 0).UTC(),
		UpdatedAt:       time.Unix(r.UpdatedAt, 0).UTC(),
	}
}

const bookSelectColumns = `b.id, b.title, b.subtitle, b.description, b.isbn10, b.isbn13, b.asin,
    b.publication_date, b.publisher, b.language, b.page_count, b.rating_avg, b.rating_count,
    b.series, b.series_position, b.file_count, b.total_file_size, b.created_at, b.updated_at`

// queryBooks runs a SELECT against books, appending clause (a
// WHERE/ORDER BY fragment using positional ? placeholders), then fills
// in each book's authors/genres/tags with one follow-up query apiece.
func (s *Store) queryBooks(ctx context.Context, clause string, args ...any) ([]Book, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+bookSelectColumns+` FROM books b `+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("query books: %w", err)
	}
	defer rows.Close()

	var books []Book
	for rows.Next() {
		var r bookRow
		if err := rows.Scan(&r.ID, &r.Title, &r.Subtitle, &r.Description, &r.ISBN10, &r.ISBN13, &r.ASIN,
			&r.PublicationDate, &r.Publisher, &r.Language, &r.PageCount, &r.RatingAvg, &r.RatingCount,
			&r.Series, &r.SeriesPosition, &r.FileCount, &r.TotalFileSize, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		books = append(books, r.toBook())
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range books {
		authors, err := s.queryStrings(ctx, `SELECT name FROM book_authors WHERE book_id = ? ORDER BY position`, books[i].ID)
		if err != nil {
			return nil, err
		}
		books[i].Authors = authors

		genres, err := s.queryStrings(ctx, `SELECT genre FROM book_genres WHERE book_id = ? ORDER BY genre`, books[i].ID)
		if err != nil {
			return nil, err
		}
		books[i].Genres = genres

		tags, err := s.queryStrings(ctx, `SELECT tag FROM book_tags WHERE book_id = ? ORDER BY tag`, books[i].ID)
		if err != nil {
			return nil, err
		}
		books[i].Tags = tags
	}
	return books, nil
}

func (s *Store) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullFloat(f float64) any {
	if f == 0 {
		return nil
	}
	return f
}

func nullIntPtr(i int) any {
	if i == 0 {
		return nil
	}
	return i
}
