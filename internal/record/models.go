package record

// Record is the persistent record model. The owning identity is part of the
// storage key and is kept out of the JSON body.
// Timestamps are unix seconds.
type Record struct {
	ID        uint64 `json:"id" bson:"id"`
	Title     string `json:"title" bson:"title"`
	Content   string `json:"content" bson:"content"`
	CreatedAt uint64 `json:"createdAt" bson:"createdAt"`
	UpdatedAt uint64 `json:"updatedAt" bson:"updatedAt"`
}

// Clone returns a copy of r so stores never hand out aliased values.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}
