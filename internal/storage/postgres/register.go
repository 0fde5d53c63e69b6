package postgres

import "github.com/Nterah/QualiPro/internal/storage"

func init() {
	storage.Register("postgres", New)
}
