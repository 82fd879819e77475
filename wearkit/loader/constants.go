package loader

import "strings"

// Folder names used by Labfront exports. Every metric collected through
// Garmin Connect lives under a "garmin-connect-*" folder, every metric
// streamed straight from the device under "garmin-device-*". Tasks get
// their own top-level folders with one sub-folder per task name.
const (
	garminConnectBase = "garmin-connect"
	garminDeviceBase  = "garmin-device"

	MetricBodyComposition  = "garmin-connect-body-composition"
	MetricDailyHeartRate   = "garmin-connect-daily-heart-rate"
	MetricDailySummary     = "garmin-connect-daily-summary"
	MetricDailyPulseOx     = "garmin-connect-pulse-ox"
	MetricSleepPulseOx     = "garmin-connect-sleep-pulse-ox"
	MetricDailyRespiration = "garmin-connect-respiration"
	MetricSleepRespiration = "garmin-connect-sleep-respiration"
	MetricSleepStage       = "garmin-connect-sleep-stage"
	MetricSleepSummary     = "garmin-connect-sleep-summary"
	MetricEpoch            = "garmin-connect-epoch"
	MetricStress           = "garmin-connect-stress"

	MetricDeviceBBI         = "garmin-device-bbi"
	MetricDeviceHeartRate   = "garmin-device-heart-rate"
	MetricDevicePulseOx     = "garmin-device-pulse-ox"
	MetricDeviceRespiration = "garmin-device-respiration"
	MetricDeviceStep        = "garmin-device-step"
	MetricDeviceStress      = "garmin-device-stress"

	MetricQuestionnaire = "questionnaire"
	MetricTodo          = "todo"
)

// Column names shared across metric tables.
const (
	ColUnixTimestampMs  = "unixTimestampInMs"
	ColTimezoneOffsetMs = "timezoneOffsetInMs"
	ColTimezone         = "timezone"
	ColISODate          = "isoDate"
	ColCalendarDate     = "calendarDate"
	ColDurationMs       = "durationInMs"
	ColSleepSummaryID   = "sleepSummaryId"

	colFirstSampleMs = "firstSampleUnixTimestampInMs"
	colLastSampleMs  = "lastSampleUnixTimestampInMs"
)

// Sleep summary columns.
const (
	ColSleepScore          = "overallSleepScore"
	ColDeepSleepDurationMs = "deepSleepDurationInMs"
	ColLightSleepDuration  = "lightSleepDurationInMs"
	ColRemSleepMs          = "remSleepInMs"
	ColAwakeDurationMs     = "awakeDurationInMs"
	ColUnmeasurableSleepMs = "unmeasurableSleepInMs"
	ColValidation          = "validation"
)

// Sleep stage columns and raw stage values.
const (
	ColSleepStageType = "type"

	stageRawAwake        = "awake"
	stageRawLight        = "light"
	stageRawDeep         = "deep"
	stageRawRem          = "rem"
	stageRawUnmeasurable = "unmeasurable"
)

// Daily summary columns.
const (
	ColSteps               = "steps"
	ColDistanceMeters      = "distanceInMeters"
	ColStepsGoal           = "stepsGoal"
	ColModerateIntensityMs = "moderateIntensityDurationInMs"
	ColVigorousIntensityMs = "vigorousIntensityDurationInMs"
	ColAverageStress       = "averageStressInStressLevel"
	ColMaximumStress       = "maxStressInStressLevel"
	ColRestStressMs        = "restStressDurationInMs"
	ColLowStressMs         = "lowStressDurationInMs"
	ColMediumStressMs      = "mediumStressDurationInMs"
	ColHighStressMs        = "highStressDurationInMs"
	ColActivityStressMs    = "activityStressDurationInMs"
	ColUncategorizedMs     = "uncategorizedStressDurationInMs"
	ColStressQualifier     = "stressQualifier"
	ColRestingHeartRate    = "restingHeartRateInBeatsPerMinute"
	ColAverageHeartRate    = "averageHeartRateInBeatsPerMinute"
	ColMaximumHeartRate    = "maxHeartRateInBeatsPerMinute"
	ColMinimumHeartRate    = "minHeartRateInBeatsPerMinute"
)

// Sample-level columns.
const (
	ColHeartRate        = "beatsPerMinute"
	ColSpO2             = "spo2"
	ColBreathsPerMinute = "breathsPerMinute"
	ColStressLevel      = "stressLevel"
	ColBodyBattery      = "bodyBattery"
	ColBBI              = "bbi"
	ColIntensity        = "intensity"
	ColActiveTimeMs     = "activeTimeInMs"
)

// Task columns.
const (
	ColTodoName            = "todoName"
	ColQuestionnaireName   = "questionnaireName"
	ColQuestionDescription = "questionDescription"
	ColQuestionType        = "questionType"
	ColSectionIndex        = "sectionIndex"
	ColQuestionIndex       = "questionIndex"
	ColTaskScheduleRepeat  = "taskScheduleRepeat"
)

// Metrics lists every per-metric folder a participant directory may
// contain, task folders excluded.
var Metrics = []string{
	MetricBodyComposition,
	MetricDailyHeartRate,
	MetricDailySummary,
	MetricDailyPulseOx,
	MetricSleepPulseOx,
	MetricDailyRespiration,
	MetricSleepRespiration,
	MetricSleepStage,
	MetricSleepSummary,
	MetricEpoch,
	MetricStress,
	MetricDeviceBBI,
	MetricDeviceHeartRate,
	MetricDevicePulseOx,
	MetricDeviceRespiration,
	MetricDeviceStep,
	MetricDeviceStress,
}

// TaskFolders are the per-task container folders.
var TaskFolders = []string{MetricQuestionnaire, MetricTodo}

// IsConnectMetric reports whether the metric's timestamps carry a
// millisecond UTC offset column instead of a named timezone column.
func IsConnectMetric(metric string) bool {
	return strings.HasPrefix(metric, garminConnectBase)
}

// IsTaskFolder reports whether the folder holds per-task sub-folders.
func IsTaskFolder(name string) bool {
	return name == MetricQuestionnaire || name == MetricTodo
}
