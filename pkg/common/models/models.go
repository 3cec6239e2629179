package models

import (
	"time"
)

type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

type Locale string

const (
	LocaleFrench  Locale = "fr"
	LocaleEnglish Locale = "en"
	LocaleArabic  Locale = "ar"
)

// ParseLocale falls back to French, the dashboard's default language.
func ParseLocale(s string) Locale {
	switch Locale(s) {
	case LocaleEnglish, LocaleArabic, LocaleFrench:
		return Locale(s)
	default:
		return LocaleFrench
	}
}

// Patient telemetry
type Measurement struct {
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	SpO2      float64   `json:"spo2" yaml:"spo2"`
	HeartRate float64   `json:"heartRate" yaml:"heartRate"`
}

type ActivityData struct {
	Steps            int     `json:"steps" yaml:"steps"`
	SedentaryMinutes int     `json:"sedentaryMinutes" yaml:"sedentaryMinutes"`
	ActiveMinutes    int     `json:"activeMinutes" yaml:"activeMinutes"`
	DistanceKm       float64 `json:"distanceKm" yaml:"distanceKm"`
	FloorsClimbed    int     `json:"floorsClimbed" yaml:"floorsClimbed"`
	MovementSpeedKmh float64 `json:"movementSpeedKmh" yaml:"movementSpeedKmh"`
}

type SleepPosition string

const (
	SleepSupine  SleepPosition = "supine"
	SleepLateral SleepPosition = "lateral"
	SleepProne   SleepPosition = "prone"
	SleepSitting SleepPosition = "sitting"
)

type SleepData struct {
	TotalSleepHours  float64       `json:"totalSleepHours" yaml:"totalSleepHours"`
	SleepEfficiency  float64       `json:"sleepEfficiency" yaml:"sleepEfficiency"`
	AwakeMinutes     int           `json:"awakeMinutes" yaml:"awakeMinutes"`
	DeepSleepMinutes int           `json:"deepSleepMinutes" yaml:"deepSleepMinutes"`
	RemSleepMinutes  int           `json:"remSleepMinutes" yaml:"remSleepMinutes"`
	NightMovements   int           `json:"nightMovements" yaml:"nightMovements"`
	SleepPosition    SleepPosition `json:"sleepPosition" yaml:"sleepPosition"`
}

type CoughData struct {
	CoughFrequencyPerHour float64 `json:"coughFrequencyPerHour" yaml:"coughFrequencyPerHour"`
	NightCoughEpisodes    int     `json:"nightCoughEpisodes" yaml:"nightCoughEpisodes"`
	CoughPattern          string  `json:"coughPattern" yaml:"coughPattern"` // dry, productive, wheezing
	CoughIntensityDb      float64 `json:"coughIntensityDb" yaml:"coughIntensityDb"`
	RespiratoryRate       float64 `json:"respiratoryRate" yaml:"respiratoryRate"`
}

type WeatherReading struct {
	TemperatureC    float64 `json:"temperatureC" yaml:"temperatureC"`
	HumidityPercent float64 `json:"humidityPercent" yaml:"humidityPercent"`
}

type EnvironmentData struct {
	AirQualityIndex float64        `json:"airQualityIndex" yaml:"airQualityIndex"`
	HomeTimePercent float64        `json:"homeTimePercent" yaml:"homeTimePercent"`
	TravelRadiusKm  float64        `json:"travelRadiusKm" yaml:"travelRadiusKm"`
	Weather         WeatherReading `json:"weather" yaml:"weather"`
}

type Symptoms struct {
	Breathlessness float64 `json:"breathlessness" yaml:"breathlessness"`
	Fatigue        float64 `json:"fatigue" yaml:"fatigue"`
	Cough          float64 `json:"cough" yaml:"cough"`
}

type SmokingData struct {
	CigarettesToday int `json:"cigarettesToday" yaml:"cigarettesToday"`
	CravingsToday   int `json:"cravingsToday" yaml:"cravingsToday"`
	DaysSmokeFree   int `json:"daysSmokeFree" yaml:"daysSmokeFree"`
}

type ReportedData struct {
	Symptoms                   Symptoms    `json:"symptoms" yaml:"symptoms"`
	MedicationAdherencePercent float64     `json:"medicationAdherencePercent" yaml:"medicationAdherencePercent"`
	QualityOfLifeCAT           float64     `json:"qualityOfLifeCAT" yaml:"qualityOfLifeCAT"`
	Smoking                    SmokingData `json:"smoking" yaml:"smoking"`
}

type Telemetry struct {
	Activity    ActivityData    `json:"activity" yaml:"activity"`
	Sleep       SleepData       `json:"sleep" yaml:"sleep"`
	Cough       CoughData       `json:"cough" yaml:"cough"`
	Environment EnvironmentData `json:"environment" yaml:"environment"`
	Reported    ReportedData    `json:"reported" yaml:"reported"`
}

// Medication management
type MedicationSchedule struct {
	ID        string `json:"id" yaml:"id"`
	TimeOfDay string `json:"timeOfDay" yaml:"timeOfDay"` // "HH:MM" or a descriptive label
	AsNeeded  bool   `json:"asNeeded" yaml:"asNeeded"`
}

type Medication struct {
	ID        string               `json:"id" yaml:"id"`
	Name      string               `json:"name" yaml:"name"`
	Dosage    string               `json:"dosage" yaml:"dosage"`
	Active    bool                 `json:"active" yaml:"active"`
	Schedules []MedicationSchedule `json:"schedules" yaml:"schedules"`
}

type MedicationDoseEvent struct {
	ID         string    `json:"id" yaml:"id"`
	ScheduleID string    `json:"scheduleId" yaml:"scheduleId"`
	TakenAt    time.Time `json:"takenAt" yaml:"takenAt"`
}

type PatientSnapshot struct {
	ID            string                `json:"id" yaml:"id"`
	Code          string                `json:"code,omitempty" yaml:"code"`
	Name          string                `json:"name" yaml:"name"`
	Age           int                   `json:"age" yaml:"age"`
	Condition     string                `json:"condition" yaml:"condition"`
	City          string                `json:"city,omitempty" yaml:"city"`
	Country       string                `json:"country,omitempty" yaml:"country"`
	Measurements  []Measurement         `json:"measurements" yaml:"measurements"`
	Telemetry     Telemetry             `json:"telemetry" yaml:"telemetry"`
	Medications   []Medication          `json:"medications" yaml:"medications"`
	MedicationLog []MedicationDoseEvent `json:"medicationLog" yaml:"medicationLog"`
}

// LatestMeasurement returns the last entry of the time-ordered measurement sequence.
func (p *PatientSnapshot) LatestMeasurement() (Measurement, bool) {
	if p == nil || len(p.Measurements) == 0 {
		return Measurement{}, false
	}
	return p.Measurements[len(p.Measurements)-1], true
}

// Clone returns a deep copy so callers can overlay values without touching the source.
func (p *PatientSnapshot) Clone() *PatientSnapshot {
	if p == nil {
		return nil
	}
	c := *p
	c.Measurements = append([]Measurement(nil), p.Measurements...)
	c.MedicationLog = append([]MedicationDoseEvent(nil), p.MedicationLog...)
	c.Medications = make([]Medication, len(p.Medications))
	for i, med := range p.Medications {
		med.Schedules = append([]MedicationSchedule(nil), med.Schedules...)
		c.Medications[i] = med
	}
	return &c
}

type NewPatient struct {
	Name      string `json:"name"`
	Age       int    `json:"age"`
	Condition string `json:"condition"`
	City      string `json:"city"`
	Country   string `json:"country"`
}

// Risk scoring
type TierBreakdown struct {
	Critical  float64 `json:"critical"`
	Important float64 `json:"important"`
	Secondary float64 `json:"secondary"`
}

type RiskAssessment struct {
	Score     int           `json:"score"`
	Level     RiskLevel     `json:"level"`
	Breakdown TierBreakdown `json:"breakdown"`
	Adherence int           `json:"adherence"`
}

// Prediction engine
type FactorAnalysis struct {
	Name        string `json:"name"`
	Impact      string `json:"impact"` // high, medium, low
	Description string `json:"description"`
}

type AlertType string

const (
	AlertVitalSignAnomaly AlertType = "vital_sign_anomaly"
	AlertMobilityDecline  AlertType = "mobility_decline"
	AlertSleepDisruption  AlertType = "sleep_disruption"
	AlertCoughIncrease    AlertType = "cough_increase"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Rank orders severities high first.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	default:
		return 3
	}
}

type AnomalyAlert struct {
	ID          string    `json:"id"`
	Type        AlertType `json:"type"`
	Severity    Severity  `json:"severity"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
	Confidence  int       `json:"confidence"`
}

type ActivityPoint struct {
	Time          string `json:"time"`
	Steps         int    `json:"steps"`
	ActiveMinutes int    `json:"activeMinutes"`
}

type HeatmapDay struct {
	DayLabel string      `json:"dayLabel"`
	Level    string      `json:"level"`
	Data     [][]float64 `json:"data"`
}

type NarrativeAnalysis struct {
	Summary             string           `json:"summary"`
	ContributingFactors []FactorAnalysis `json:"contributingFactors"`
	Recommendations     []string         `json:"recommendations"`
	Error               string           `json:"error,omitempty"`
}

type CompletePrediction struct {
	PatientID           string           `json:"patientId"`
	RiskScore           int              `json:"riskScore"`
	BaseScore           int              `json:"baseScore"`
	RiskLevel           RiskLevel        `json:"riskLevel"`
	Confidence          int              `json:"confidence"`
	TimeHorizonHours    int              `json:"timeHorizonHours"`
	Summary             string           `json:"summary"`
	ContributingFactors []FactorAnalysis `json:"contributingFactors"`
	Alerts              []AnomalyAlert   `json:"alerts"`
	Recommendations     []string         `json:"recommendations"`
	ActivityTimeSeries  []ActivityPoint  `json:"activityTimeSeries"`
	HeatmapSeries       []HeatmapDay     `json:"heatmapSeries"`
	LastUpdate          time.Time        `json:"lastUpdate"`
	Error               string           `json:"error,omitempty"`
}

// Dashboard alerts
type PatientAlertType string

const (
	PatientAlertHighRisk          PatientAlertType = "high_risk"
	PatientAlertDecliningTrend    PatientAlertType = "declining_trend"
	PatientAlertMissedMeasurement PatientAlertType = "missed_measurement"
)

type PatientAlert struct {
	ID          string           `json:"id"`
	PatientID   string           `json:"patientId"`
	PatientName string           `json:"patientName"`
	Type        PatientAlertType `json:"type"`
	Severity    Severity         `json:"severity"`
	Message     string           `json:"message"`
	Timestamp   time.Time        `json:"timestamp"`
}

// Environment
type WeatherData struct {
	Location        string  `json:"location"`
	Condition       string  `json:"condition"`
	TemperatureC    float64 `json:"temperatureC"`
	HumidityPercent float64 `json:"humidityPercent"`
	WindSpeedKmh    float64 `json:"windSpeedKmh"`
	AirQualityIndex float64 `json:"airQualityIndex"`
	PollenLevel     string  `json:"pollenLevel"`
	UVIndex         int     `json:"uvIndex"`
	// Unavailable marks a placeholder returned when no provider is configured.
	Unavailable     bool    `json:"unavailable,omitempty"`
}

type WeatherImpact struct {
	ImpactLevel RiskLevel `json:"impactLevel"`
	Summary     string    `json:"summary"`
	Error       string    `json:"error,omitempty"`
}

// Event Bus models
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // prediction.updated, measurement
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}
