package repository

// WithID filters by the "id" column.
func WithID(id int64) Option {
	return WithCondition("id", id)
}

// WithIDIn filters by the "id" column using IN.
func WithIDIn(ids []int64) Option {
	return WithConditionIn("id", ids)
}

// WithoutIDs excludes the given ids.
func WithoutIDs(ids []int64) Option {
	return WithConditionNotIn("id", ids)
}

// WithEmbedded keeps only catalog items that carry an embedding.
func WithEmbedded() Option {
	return WithConditionNotNull("embedding")
}

// WithUserID filters by the "user_id" column.
func WithUserID(id string) Option {
	return WithCondition("user_id", id)
}

// WithMinRating keeps ratings at or above the threshold.
func WithMinRating(rating int) Option {
	return WithConditionAtLeast("rating", rating)
}

// OrderByPopularity sorts by popularity, highest first, breaking ties by id.
func OrderByPopularity() Option {
	return func(q Query) Query {
		q = WithOrderDesc("popularity")(q)
		return WithOrderAsc("id")(q)
	}
}

// OrderByRating sorts by rating, highest first, then most recently watched.
func OrderByRating() Option {
	return func(q Query) Query {
		q = WithOrderDesc("rating")(q)
		return WithOrderDesc("watched_at")(q)
	}
}
