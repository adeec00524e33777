package model

import (
	"fmt"
	"sort"
)

// DataType identifies one of the fixed sensor-record categories.
type DataType string

const (
	DataTypeDilution     DataType = "dilution"
	DataTypeGas          DataType = "gas"
	DataTypeLevelControl DataType = "level_control"
)

// Descriptor is the per-type operation set: where records live, how to build one,
// and which numeric fields it carries.
type Descriptor struct {
	Type   DataType
	Table  string
	Label  string
	New    func() SensorRecord
	fields map[string]struct{}
}

var descriptors = map[DataType]*Descriptor{
	DataTypeDilution: {
		Type:  DataTypeDilution,
		Table: "dilution_data",
		Label: "Dilution Data",
		New:   func() SensorRecord { return &DilutionData{} },
	},
	DataTypeGas: {
		Type:  DataTypeGas,
		Table: "gas_data",
		Label: "Gas Data",
		New:   func() SensorRecord { return &GasData{} },
	},
	DataTypeLevelControl: {
		Type:  DataTypeLevelControl,
		Table: "level_control_data",
		Label: "Level Control Data",
		New:   func() SensorRecord { return &LevelControlData{} },
	},
}

func init() {
	for dt, d := range descriptors {
		rec := d.New()
		if rec.Kind() != dt {
			panic(fmt.Sprintf("model: descriptor %q builds a %q record", dt, rec.Kind()))
		}
		d.fields = make(map[string]struct{})
		for _, f := range rec.Fields() {
			d.fields[f.Column] = struct{}{}
		}
	}
}

// AllDataTypes returns every known data type in a stable order.
func AllDataTypes() []DataType {
	return []DataType{DataTypeDilution, DataTypeGas, DataTypeLevelControl}
}

// ParseDataType converts an external name into a DataType.
func ParseDataType(s string) (DataType, bool) {
	dt := DataType(s)
	_, ok := descriptors[dt]
	return dt, ok
}

// Describe returns the descriptor for a data type. It panics for values that did not
// come from ParseDataType or the declared constants.
func Describe(dt DataType) *Descriptor {
	d, ok := descriptors[dt]
	if !ok {
		panic(fmt.Sprintf("model: unknown data type %q", dt))
	}
	return d
}

// Valid reports whether dt is one of the declared data types.
func (dt DataType) Valid() bool {
	_, ok := descriptors[dt]
	return ok
}

// HasField reports whether column is a numeric field of this data type.
func (d *Descriptor) HasField(column string) bool {
	_, ok := d.fields[column]
	return ok
}

// FieldNames lists the numeric columns of the data type, sorted.
func (d *Descriptor) FieldNames() []string {
	names := make([]string, 0, len(d.fields))
	for name := range d.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
