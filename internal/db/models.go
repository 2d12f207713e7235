package db

import "time"

// Article maps news.articles.
type Article struct {
	ArticleID    int64     `gorm:"column:article_id;primaryKey;autoIncrement"`
	ArticleKey   string    `gorm:"column:article_key;type:text;not null;unique"`
	Source       string    `gorm:"column:source;type:text;not null"`
	Title        string    `gorm:"column:title;type:text;not null"`
	Summary      string    `gorm:"column:summary;type:text;not null;default:''"`
	URL          string    `gorm:"column:url;type:text;not null"`
	CanonicalURL string    `gorm:"column:canonical_url;type:text;not null"`
	Language     string    `gorm:"column:language;type:text;not null;default:und"`
	PublishedAt  time.Time `gorm:"column:published_at;type:timestamptz;not null"`
	Popularity   float64   `gorm:"column:popularity;type:double precision;not null;default:0"`
	CreatedAt    time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt    time.Time `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (Article) TableName() string { return "news.articles" }

// Cluster maps news.clusters.
type Cluster struct {
	ClusterID                int64      `gorm:"column:cluster_id;primaryKey;autoIncrement"`
	ClusterUUID              string     `gorm:"column:cluster_uuid;type:uuid;not null;unique"`
	RepresentativeArticleKey string     `gorm:"column:representative_article_key;type:text;not null"`
	Topic                    string     `gorm:"column:topic;type:text;not null"`
	Score                    float64    `gorm:"column:score;type:double precision;not null;default:0"`
	Velocity                 float64    `gorm:"column:velocity;type:double precision;not null;default:0"`
	Status                   string     `gorm:"column:status;type:text;not null;default:active"`
	CreatedAt                time.Time  `gorm:"column:created_at;type:timestamptz;not null"`
	UpdatedAt                time.Time  `gorm:"column:updated_at;type:timestamptz;not null"`
	RetiredAt                *time.Time `gorm:"column:retired_at;type:timestamptz"`
}

func (Cluster) TableName() string { return "news.clusters" }

// ClusterMember maps news.cluster_members.
type ClusterMember struct {
	ClusterUUID string    `gorm:"column:cluster_uuid;type:uuid;primaryKey"`
	ArticleKey  string    `gorm:"column:article_key;type:text;primaryKey"`
	Position    int       `gorm:"column:position;type:integer;not null"`
	AddedAt     time.Time `gorm:"column:added_at;type:timestamptz;not null;default:now()"`
}

func (ClusterMember) TableName() string { return "news.cluster_members" }

// BatchRun maps news.batch_runs.
type BatchRun struct {
	BatchRunID        int64     `gorm:"column:batch_run_id;primaryKey;autoIncrement"`
	BatchUUID         string    `gorm:"column:batch_uuid;type:uuid;not null;unique"`
	ArticlesIn        int       `gorm:"column:articles_in;type:integer;not null;default:0"`
	DuplicatesRemoved int       `gorm:"column:duplicates_removed;type:integer;not null;default:0"`
	ExactDuplicates   int       `gorm:"column:exact_duplicates;type:integer;not null;default:0"`
	ClustersFormed    int       `gorm:"column:clusters_formed;type:integer;not null;default:0"`
	ClustersTouched   int       `gorm:"column:clusters_touched;type:integer;not null;default:0"`
	Unclustered       int       `gorm:"column:unclustered;type:integer;not null;default:0"`
	Fallback          bool      `gorm:"column:fallback;type:boolean;not null;default:false"`
	ErrorMessage      *string   `gorm:"column:error_message;type:text"`
	CreatedAt         time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (BatchRun) TableName() string { return "news.batch_runs" }

func autoMigrateModels() []any {
	return []any{
		&Article{},
		&Cluster{},
		&ClusterMember{},
		&BatchRun{},
	}
}
