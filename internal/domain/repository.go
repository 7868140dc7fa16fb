package domain

// JobRepository defines storage for generation jobs.
type JobRepository interface {
	Create(job *GenerationJob) error
	Get(jobID string) (*GenerationJob, error)
	Update(jobID string, fn func(*GenerationJob) error) (*GenerationJob, error)
}
