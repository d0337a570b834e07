package settings

import (
	"fmt"
	"log"
	"reflect"

	"github.com/dustin/go-humanize"
	"github.com/go-viper/mapstructure/v2"
)

// HumanReadableBytes is a byte count that can be configured as "64Mi", "2GB" or a plain number.
type HumanReadableBytes uint64

func (h HumanReadableBytes) String() string {
	return humanize.IBytes(uint64(h))
}

func HumanToBytes(s string) (HumanReadableBytes, error) {
	v, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("%w: bad byte size '%s': %v", ErrConfiguration, s, err)
	}
	return HumanReadableBytes(v), nil
}

// HumanToBytesFatal is for compiled in defaults only.
func HumanToBytesFatal(s string) HumanReadableBytes {
	v, err := HumanToBytes(s)
	if err != nil {
		log.Fatal(err)
	}
	return v
}

// HumanReadableBytesHookFunc decodes strings such as "10Ki" into HumanReadableBytes.
func HumanReadableBytesHookFunc() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if t != reflect.TypeOf(HumanReadableBytes(0)) {
			return data, nil
		}
		if f.Kind() != reflect.String {
			return data, nil
		}
		return HumanToBytes(data.(string))
	}
}
