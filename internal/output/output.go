package output

import "github.com/danieldk/finalfrontier/internal/model"

// Output is a destination for a trained embedding model.
type Output interface {
	Write(m model.TrainedModel) error
	Close() error
}
