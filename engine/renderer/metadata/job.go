package metadata

/** @brief Describes a type of job */
type JobType int

const (
	/**
	 * @brief A general job that does not have any specific thread requirements.
	 */
	JOB_TYPE_GENERAL JobType = 0x02
	/**
	 * @brief A resource loading job, typically decoding an image from disk.
	 */
	JOB_TYPE_RESOURCE_LOAD JobType = 0x04
)

/** @brief Priority hint of a job. */
type JobPriority int

const (
	JOB_PRIORITY_LOW JobPriority = iota
	JOB_PRIORITY_NORMAL
	JOB_PRIORITY_HIGH
)

/**
 * @brief Describes a job to be run by the job system.
 */
type JobTask struct {
	JobType  JobType
	Priority JobPriority
	/** @brief Data passed to OnStart. */
	InputParams []interface{}
	/** @brief Invoked on a worker. Required. */
	OnStart func(params []interface{}) (interface{}, error)
	/** @brief Invoked with the result of OnStart on success. Optional. */
	OnComplete func(result interface{})
	/** @brief Invoked with the error of OnStart on failure. Optional. */
	OnFailure func(err error)
	/** @brief Invoked after OnComplete or OnFailure. Optional. */
	OnCompletionCallback func()
}
