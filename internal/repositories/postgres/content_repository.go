package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/aarondl/null/v8"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domain "github.com/Unit659z/Clover-studio/internal/domain"
	ppostgres "github.com/Unit659z/Clover-studio/internal/platform/postgres"
	"github.com/Unit659z/Clover-studio/internal/repositories"
)

var newsColumns = []string{"id", "title", "content", "author_id", "published_at", "updated_at"}

var newsSortColumns = map[repositories.NewsSort]string{
	repositories.NewsSortPublishedAt: "published_at",
	repositories.NewsSortTitle:       "title",
}

// NewsRepository stores studio news.
type NewsRepository struct {
	pool *pgxpool.Pool
}

var _ repositories.NewsRepository = (*NewsRepository)(nil)

func scanNews(row pgx.CollectableRow) (domain.NewsArticle, error) {
	var (
		article  domain.NewsArticle
		authorID null.String
	)
	if err := row.Scan(&article.ID, &article.Title, &article.Content, &authorID, &article.PublishedAt, &article.UpdatedAt); err != nil {
		return domain.NewsArticle{}, err
	}
	article.AuthorID = authorID.Ptr()
	return article, nil
}

func (r *NewsRepository) Insert(ctx context.Context, article domain.NewsArticle) error {
	builder := psql.Insert("news").
		Columns(newsColumns...).
		Values(article.ID, article.Title, article.Content, null.StringFromPtr(article.AuthorID), article.PublishedAt, article.UpdatedAt)
	return exec(ctx, ppostgres.Querier(ctx, r.pool), "news.insert", builder, false)
}

func (r *NewsRepository) Update(ctx context.Context, article domain.NewsArticle) error {
	builder := psql.Update("news").
		Set("title", article.Title).
		Set("content", article.Content).
		Set("published_at", article.PublishedAt).
		Set("updated_at", article.UpdatedAt).
		Where(sq.Eq{"id": article.ID})
	return exec(ctx, ppostgres.Querier(ctx, r.pool), "news.update", builder, true)
}

func (r *NewsRepository) Delete(ctx context.Context, newsID string) error {
	return exec(ctx, ppostgres.Querier(ctx, r.pool), "news.delete", psql.Delete("news").Where(sq.Eq{"id": newsID}), true)
}

func (r *NewsRepository) FindByID(ctx context.Context, newsID string) (domain.NewsArticle, error) {
	builder := psql.Select(newsColumns...).From("news").Where(sq.Eq{"id": newsID})
	return queryOne(ctx, ppostgres.Querier(ctx, r.pool), "news.find", builder, scanNews)
}

func (r *NewsRepository) List(ctx context.Context, filter repositories.NewsListFilter) (domain.CursorPage[domain.NewsArticle], error) {
	builder := psql.Select(newsColumns...).From("news")
	if filter.AuthorID != "" {
		builder = builder.Where(sq.Eq{"author_id": filter.AuthorID})
	}
	if filter.Search != "" {
		pattern := containsPattern(filter.Search)
		builder = builder.Where(sq.Or{sq.ILike{"title": pattern}, sq.ILike{"content": pattern}})
	}
	column, ok := newsSortColumns[filter.SortBy]
	direction := sortDirection(filter.SortOrder)
	if !ok {
		column, direction = "published_at", "DESC"
	}
	builder = builder.OrderBy(fmt.Sprintf("%s %s", column, direction), fmt.Sprintf("id %s", direction))
	return queryPage(ctx, ppostgres.Querier(ctx, r.pool), "news.list", builder, filter.Pagination, scanNews)
}

var messageColumns = []string{"id", "sender_id", "receiver_id", "content", "sent_at", "is_read"}

// MessageRepository stores direct messages between users.
type MessageRepository struct {
	pool *pgxpool.Pool
}

var _ repositories.MessageRepository = (*MessageRepository)(nil)

func scanMessage(row pgx.CollectableRow) (domain.Message, error) {
	var msg domain.Message
	if err := row.Scan(&msg.ID, &msg.SenderID, &msg.ReceiverID, &msg.Content, &msg.SentAt, &msg.IsRead); err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

func (r *MessageRepository) Insert(ctx context.Context, message domain.Message) error {
	builder := psql.Insert("messages").
		Columns(messageColumns...).
		Values(message.ID, message.SenderID, message.ReceiverID, message.Content, message.SentAt, message.IsRead)
	return exec(ctx, ppostgres.Querier(ctx, r.pool), "messages.insert", builder, false)
}

func (r *MessageRepository) FindByID(ctx context.Context, messageID string) (domain.Message, error) {
	builder := psql.Select(messageColumns...).From("messages").Where(sq.Eq{"id": messageID})
	return queryOne(ctx, ppostgres.Querier(ctx, r.pool), "messages.find", builder, scanMessage)
}

func (r *MessageRepository) MarkRead(ctx context.Context, messageID string) (domain.Message, error) {
	builder := psql.Update("messages").
		Set("is_read", true).
		Where(sq.Eq{"id": messageID}).
		Suffix("RETURNING id, sender_id, receiver_id, content, sent_at, is_read")
	return queryOne(ctx, ppostgres.Querier(ctx, r.pool), "messages.mark_read", builder, scanMessage)
}

func (r *MessageRepository) Delete(ctx context.Context, messageID string) error {
	return exec(ctx, ppostgres.Querier(ctx, r.pool), "messages.delete", psql.Delete("messages").Where(sq.Eq{"id": messageID}), true)
}

func (r *MessageRepository) List(ctx context.Context, filter repositories.MessageListFilter) (domain.CursorPage[domain.Message], error) {
	builder := psql.Select(messageColumns...).
		From("messages").
		Where(sq.Or{sq.Eq{"sender_id": filter.ParticipantID}, sq.Eq{"receiver_id": filter.ParticipantID}})
	if filter.SenderID != "" {
		builder = builder.Where(sq.Eq{"sender_id": filter.SenderID})
	}
	if filter.ReceiverID != "" {
		builder = builder.Where(sq.Eq{"receiver_id": filter.ReceiverID})
	}
	if filter.IsRead != nil {
		builder = builder.Where(sq.Eq{"is_read": *filter.IsRead})
	}
	builder = builder.OrderBy("sent_at DESC", "id DESC")
	return queryPage(ctx, ppostgres.Querier(ctx, r.pool), "messages.list", builder, filter.Pagination, scanMessage)
}

var portfolioColumns = []string{"id", "executor_id", "title", "video_link", "description", "uploaded_at", "updated_at"}

var portfolioSortColumns = map[repositories.PortfolioSort]string{
	repositories.PortfolioSortUploadedAt: "uploaded_at",
	repositories.PortfolioSortTitle:      "title",
}

// PortfolioRepository stores executor portfolio items.
type PortfolioRepository struct {
	pool *pgxpool.Pool
}

var _ repositories.PortfolioRepository = (*PortfolioRepository)(nil)

func scanPortfolioItem(row pgx.CollectableRow) (domain.PortfolioItem, error) {
	var (
		item      domain.PortfolioItem
		videoLink null.String
	)
	if err := row.Scan(&item.ID, &item.ExecutorID, &item.Title, &videoLink, &item.Description, &item.UploadedAt, &item.UpdatedAt); err != nil {
		return domain.PortfolioItem{}, err
	}
	item.VideoLink = videoLink.Ptr()
	return item, nil
}

func (r *PortfolioRepository) Insert(ctx context.Context, item domain.PortfolioItem) error {
	builder := psql.Insert("portfolio_items").
		Columns(portfolioColumns...).
		Values(item.ID, item.ExecutorID, item.Title, null.StringFromPtr(item.VideoLink), item.Description, item.UploadedAt, item.UpdatedAt)
	err := exec(ctx, ppostgres.Querier(ctx, r.pool), "portfolio_items.insert", builder, false)
	if ppostgres.IsConstraint(err, "portfolio_items_executor_id_fkey") {
		return ppostgres.NotFound("portfolio_items.insert")
	}
	return err
}

func (r *PortfolioRepository) Update(ctx context.Context, item domain.PortfolioItem) error {
	builder := psql.Update("portfolio_items").
		Set("title", item.Title).
		Set("video_link", null.StringFromPtr(item.VideoLink)).
		Set("description", item.Description).
		Set("updated_at", item.UpdatedAt).
		Where(sq.Eq{"id": item.ID})
	return exec(ctx, ppostgres.Querier(ctx, r.pool), "portfolio_items.update", builder, true)
}

func (r *PortfolioRepository) Delete(ctx context.Context, itemID string) error {
	builder := psql.Delete("portfolio_items").Where(sq.Eq{"id": itemID})
	return exec(ctx, ppostgres.Querier(ctx, r.pool), "portfolio_items.delete", builder, true)
}

func (r *PortfolioRepository) FindByID(ctx context.Context, itemID string) (domain.PortfolioItem, error) {
	builder := psql.Select(portfolioColumns...).From("portfolio_items").Where(sq.Eq{"id": itemID})
	return queryOne(ctx, ppostgres.Querier(ctx, r.pool), "portfolio_items.find", builder, scanPortfolioItem)
}

func (r *PortfolioRepository) List(ctx context.Context, filter repositories.PortfolioListFilter) (domain.CursorPage[domain.PortfolioItem], error) {
	builder := psql.Select(portfolioColumns...).From("portfolio_items")
	if filter.ExecutorID != "" {
		builder = builder.Where(sq.Eq{"executor_id": filter.ExecutorID})
	}
	if filter.Search != "" {
		pattern := containsPattern(filter.Search)
		builder = builder.Where(sq.Or{sq.ILike{"title": pattern}, sq.ILike{"description": pattern}})
	}
	column, ok := portfolioSortColumns[filter.SortBy]
	direction := sortDirection(filter.SortOrder)
	if !ok {
		column, direction = "uploaded_at", "DESC"
	}
	builder = builder.OrderBy(fmt.Sprintf("%s %s", column, direction), fmt.Sprintf("id %s", direction))
	return queryPage(ctx, ppostgres.Querier(ctx, r.pool), "portfolio_items.list", builder, filter.Pagination, scanPortfolioItem)
}
