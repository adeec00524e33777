package model

import "time"

// SensorBase holds the columns shared by every sensor table.
type SensorBase struct {
	RecordID   int64      `gorm:"column:record_id;primaryKey;autoIncrement" json:"record_id"`
	ReactorID  int64      `gorm:"not null;index" json:"reactor_id"`
	Timestamp  time.Time  `gorm:"not null;index" json:"timestamp"`
	UploadedAt *time.Time `json:"uploaded_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Field binds a numeric column to its external payload key and to the value slot of
// a concrete record.
type Field struct {
	Column  string
	Payload string
	Ptr     **float64
}

// SensorRecord is one row of a dilution, gas or level-control table.
type SensorRecord interface {
	Base() *SensorBase
	Kind() DataType
	Fields() []Field
}

// Value returns the value of column on rec. ok is false when the column is not a field
// of the record's type; a nil value with ok true means the reading is absent.
func Value(rec SensorRecord, column string) (value *float64, ok bool) {
	for _, f := range rec.Fields() {
		if f.Column == column {
			return *f.Ptr, true
		}
	}
	return nil, false
}

// DilutionData is a reading from the dilution controller.
type DilutionData struct {
	SensorBase
	TimePassed         *float64 `json:"time_passed"`
	Flowrate           *float64 `json:"flowrate"`
	DilutionRate       *float64 `json:"dilution_rate"`
	VolumeReactor      *float64 `json:"volume_reactor"`
	MassInTank         *float64 `json:"mass_in_tank"`
	FilteredMassInTank *float64 `json:"filtered_mass_in_tank"`
	TotalTankBalance   *float64 `json:"total_tank_balance"`
}

func (DilutionData) TableName() string    { return "dilution_data" }
func (d *DilutionData) Base() *SensorBase { return &d.SensorBase }
func (d *DilutionData) Kind() DataType    { return DataTypeDilution }

func (d *DilutionData) Fields() []Field {
	return []Field{
		{"time_passed", "time_passed", &d.TimePassed},
		{"flowrate", "flowrate", &d.Flowrate},
		{"dilution_rate", "dilution_rate", &d.DilutionRate},
		{"volume_reactor", "volume_reactor", &d.VolumeReactor},
		{"mass_in_tank", "mass_in_tank", &d.MassInTank},
		{"filtered_mass_in_tank", "filtered_mass_in_tank", &d.FilteredMassInTank},
		{"total_tank_balance", "total_tank_balance", &d.TotalTankBalance},
	}
}

// GasData is a reading from the off-gas analyser and probes.
type GasData struct {
	SensorBase
	OUR             *float64 `gorm:"column:our" json:"our"`
	RQ              *float64 `gorm:"column:rq" json:"rq"`
	Kla1h           *float64 `gorm:"column:kla_1h" json:"kla_1h"`
	KlaBar          *float64 `gorm:"column:kla_bar" json:"kla_bar"`
	StirrerSpeed    *float64 `json:"stirrer_speed"`
	PH              *float64 `gorm:"column:ph" json:"ph"`
	DissolvedOxygen *float64 `json:"dissolved_oxygen"`
	ReactorTemp     *float64 `json:"reactor_temp"`
	Pio2            *float64 `gorm:"column:pio2" json:"pio2"`
	GasFlowIn       *float64 `json:"gas_flow_in"`
	ReactorVolume   *float64 `json:"reactor_volume"`
	Tout            *float64 `gorm:"column:tout" json:"tout"`
	Tin             *float64 `gorm:"column:tin" json:"tin"`
	Pout            *float64 `gorm:"column:pout" json:"pout"`
	Pin             *float64 `gorm:"column:pin" json:"pin"`
	GasOut          *float64 `json:"gas_out"`
	Ni              *float64 `gorm:"column:ni" json:"ni"`
	Nout            *float64 `gorm:"column:nout" json:"nout"`
	CPR             *float64 `gorm:"column:cpr" json:"cpr"`
	Yo2in           *float64 `gorm:"column:yo2in" json:"yo2in"`
	Yo2out          *float64 `gorm:"column:yo2out" json:"yo2out"`
	Yco2in          *float64 `gorm:"column:yco2in" json:"yco2in"`
	Yco2out         *float64 `gorm:"column:yco2out" json:"yco2out"`
	YinertIn        *float64 `gorm:"column:yinert_in" json:"yinert_in"`
	YinertOut       *float64 `gorm:"column:yinert_out" json:"yinert_out"`
}

func (GasData) TableName() string    { return "gas_data" }
func (g *GasData) Base() *SensorBase { return &g.SensorBase }
func (g *GasData) Kind() DataType    { return DataTypeGas }

func (g *GasData) Fields() []Field {
	return []Field{
		{"our", "OUR", &g.OUR},
		{"rq", "RQ", &g.RQ},
		{"kla_1h", "Kla_1h", &g.Kla1h},
		{"kla_bar", "Kla_bar", &g.KlaBar},
		{"stirrer_speed", "stirrer_speed", &g.StirrerSpeed},
		{"ph", "pH", &g.PH},
		{"dissolved_oxygen", "DO", &g.DissolvedOxygen},
		{"reactor_temp", "reactor_temp", &g.ReactorTemp},
		{"pio2", "pio2", &g.Pio2},
		{"gas_flow_in", "gas_flow_in", &g.GasFlowIn},
		{"reactor_volume", "reactor_volume", &g.ReactorVolume},
		{"tout", "Tout", &g.Tout},
		{"tin", "Tin", &g.Tin},
		{"pout", "Pout", &g.Pout},
		{"pin", "Pin", &g.Pin},
		{"gas_out", "gas_out", &g.GasOut},
		{"ni", "Ni", &g.Ni},
		{"nout", "Nout", &g.Nout},
		{"cpr", "CPR", &g.CPR},
		{"yo2in", "Yo2in", &g.Yo2in},
		{"yo2out", "Yo2out", &g.Yo2out},
		{"yco2in", "Yco2in", &g.Yco2in},
		{"yco2out", "Yco2out", &g.Yco2out},
		{"yinert_in", "Yinert_in", &g.YinertIn},
		{"yinert_out", "Yinert_out", &g.YinertOut},
	}
}

// LevelControlData is a reading from the level (weight) control loop.
type LevelControlData struct {
	SensorBase
	ReactorWeight *float64 `json:"reactor_weight"`
	VolumeReactor *float64 `json:"volume_reactor"`
	PidValue      *float64 `json:"pid_value"`
	PumpRpm       *float64 `json:"pump_rpm"`
}

func (LevelControlData) TableName() string    { return "level_control_data" }
func (l *LevelControlData) Base() *SensorBase { return &l.SensorBase }
func (l *LevelControlData) Kind() DataType    { return DataTypeLevelControl }

func (l *LevelControlData) Fields() []Field {
	return []Field{
		{"reactor_weight", "reactor_weight", &l.ReactorWeight},
		{"volume_reactor", "volume_reactor", &l.VolumeReactor},
		{"pid_value", "pid_value", &l.PidValue},
		{"pump_rpm", "pump_rpm", &l.PumpRpm},
	}
}
