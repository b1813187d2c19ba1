package db

import "time"

// FeedSource maps news.feed_sources.
type FeedSource struct {
	ID            int64      `gorm:"column:id;primaryKey;autoIncrement"`
	Name          string     `gorm:"column:name;type:text;not null"`
	URL           string     `gorm:"column:url;type:text;not null;unique"`
	Tier          int        `gorm:"column:tier;type:smallint;not null;default:3"`
	Category      string     `gorm:"column:category;type:text;not null;default:general"`
	Active        bool       `gorm:"column:active;type:boolean;not null;default:true"`
	LastFetchedAt *time.Time `gorm:"column:last_fetched_at;type:timestamptz"`
	ItemCount     int64      `gorm:"column:item_count;type:bigint;not null;default:0"`
	ErrorCount    int64      `gorm:"column:error_count;type:bigint;not null;default:0"`
	CreatedAt     time.Time  `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (FeedSource) TableName() string { return "news.feed_sources" }

// NewsItem maps news.news_items. SourceURL holds the canonical URL.
type NewsItem struct {
	ID           int64      `gorm:"column:id;primaryKey;autoIncrement"`
	Title        string     `gorm:"column:title;type:text;not null"`
	SourceName   string     `gorm:"column:source_name;type:text;not null"`
	SourceDomain string     `gorm:"column:source_domain;type:text;not null;default:''"`
	SourceURL    string     `gorm:"column:source_url;type:text;not null;unique"`
	Fingerprint  string     `gorm:"column:fingerprint;type:text;not null"`
	Snippet      string     `gorm:"column:snippet;type:text;not null;default:''"`
	Category     string     `gorm:"column:category;type:text;not null;default:general"`
	PublishedAt  time.Time  `gorm:"column:published_at;type:timestamptz;not null"`
	FeedURL      string     `gorm:"column:feed_url;type:text;not null"`
	Tier         int        `gorm:"column:tier;type:smallint;not null"`
	DISScore     *int       `gorm:"column:dis_score;type:smallint"`
	ScoredAt     *time.Time `gorm:"column:scored_at;type:timestamptz"`
	CreatedAt    time.Time  `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (NewsItem) TableName() string { return "news.news_items" }

func autoMigrateModels() []any {
	return []any{
		&FeedSource{},
		&NewsItem{},
	}
}
