package client

import "time"

type Client struct {
	ID             int64      `db:"id" json:"id"`
	Name           string     `db:"name" json:"name"`
	Institution    *string    `db:"institution" json:"institution,omitempty"`
	Email          string     `db:"email" json:"email"`
	Phone          *string    `db:"phone" json:"phone,omitempty"`
	Address        *string    `db:"address" json:"address,omitempty"`
	SubscriptionID *string    `db:"subscription_id" json:"subscription_id,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// ProjectConfig drives per-client project-ID naming. One row per client.
// LastBatchNumber is advanced inside the generation transaction so two
// concurrent generations never hand out the same number.
type ProjectConfig struct {
	ID                 int64      `db:"id" json:"id"`
	ClientID           int64      `db:"client_id" json:"client_id"`
	NamingScheme       string     `db:"naming_scheme" json:"naming_scheme"`
	Prefix             string     `db:"prefix" json:"prefix"`
	LastBatchNumber    int        `db:"last_batch_number" json:"last_batch_number"`
	IncludeSampleTypes bool       `db:"include_sample_types" json:"include_sample_types"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

type GenerateProjectIDRequest struct {
	ClientID     int64  `json:"client_id"`
	StoolCount   int    `json:"stool_count"`
	VaginalCount int    `json:"vaginal_count"`
	OtherCount   int    `json:"other_count"`
	CustomSuffix string `json:"custom_suffix"`
	Preview      bool   `json:"preview"`
}

type GenerateProjectIDResponse struct {
	ProjectID   string `json:"project_id"`
	BatchNumber int    `json:"batch_number"`
	Reserved    bool   `json:"reserved"`
}
