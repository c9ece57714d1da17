package baetyl_iec104

import (
	"fmt"
	"strconv"

	dm "github.com/baetyl/baetyl-go/v2/dmcontext"
	"github.com/baetyl/baetyl-go/v2/errors"

	"github.com/baetyl/baetyl-iec104/iec104"
)

func getMappingName(id string, accessTemplate *dm.AccessTemplate) (string, error) {
	for _, prop := range accessTemplate.Properties {
		if prop.Id == id {
			return prop.Name, nil
		}
	}
	return "", errors.New(fmt.Sprintf("no property with id %s", id))
}

func getConfigIdByModelName(name string, accessTemplate *dm.AccessTemplate) (string, error) {
	for _, mapping := range accessTemplate.Mappings {
		if mapping.Attribute != name {
			continue
		}
		params, err := dm.ParseExpression(mapping.Expression)
		if err != nil {
			return "", errors.Trace(err)
		}
		if len(params) == 0 {
			return "", errors.New(fmt.Sprintf("expression of %s has no parameter", name))
		}
		return params[0][1:], nil
	}
	return "", errors.New(fmt.Sprintf("no mapping for model attribute %s", name))
}

func parseValueToBool(v interface{}) (bool, error) {
	switch value := v.(type) {
	case bool:
		return value, nil
	case string:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return false, errors.Trace(err)
		}
		return b, nil
	case float64:
		return value != 0, nil
	case float32:
		return value != 0, nil
	case int:
		return value != 0, nil
	case int64:
		return value != 0, nil
	default:
		return false, errors.New(fmt.Sprintf("failed to parse %T to bool", v))
	}
}

func parseValueToFloat64(v interface{}) (float64, error) {
	switch value := v.(type) {
	case float64:
		return value, nil
	case float32:
		return float64(value), nil
	case int:
		return float64(value), nil
	case int32:
		return float64(value), nil
	case int64:
		return float64(value), nil
	case string:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, errors.Trace(err)
		}
		return f, nil
	default:
		return 0, errors.New(fmt.Sprintf("failed to parse %T to float64", v))
	}
}

// commandValue converts a desired property value into the point value
// matching the control type of the target point.
func commandValue(t iec104.TypeID, raw interface{}) (iec104.Value, error) {
	kind, ok := t.Kind()
	if !ok {
		return iec104.Value{}, errors.New(fmt.Sprintf("unknown type identifier %s", t))
	}
	switch kind {
	case iec104.KindSingle:
		b, err := parseValueToBool(raw)
		if err != nil {
			return iec104.Value{}, errors.Trace(err)
		}
		return iec104.SingleValue(b), nil
	case iec104.KindMeasured:
		f, err := parseValueToFloat64(raw)
		if err != nil {
			return iec104.Value{}, errors.Trace(err)
		}
		return iec104.MeasuredValue(f), nil
	default:
		return iec104.Value{}, errors.New(fmt.Sprintf("unsupported command kind %s", kind))
	}
}
