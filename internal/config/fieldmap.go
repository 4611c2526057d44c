package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// FieldMap resolves deployment-specific object-store identifiers. The remote
// store keys every field by a stable GUID and every object type by an integer
// ref; none of those are compiled into the binary.
type FieldMap struct {
	ObjectTypes map[string]int
	Fields      map[string]uuid.UUID
	Buckets     map[string]BucketFields
	Entities    map[string]EntityFields
}

// EntityFields names the billing-store fields that mirror one source entity.
// Zero refs mean the entity does not track that field (users carry no number
// or case team, for example).
type EntityFields struct {
	SourceKey uuid.UUID
	Name      uuid.UUID
	Number    uuid.UUID
	CreatedBy uuid.UUID
	CreatedOn uuid.UUID
	CaseTeam  uuid.UUID
	Analyst   uuid.UUID
	Status    uuid.UUID
}

// BucketFields holds the two possible destinations for one billable bucket.
// Override is the destination used when a manual override exists for the
// matter; zero value means the bucket has no override-aware destination.
type BucketFields struct {
	Standard uuid.UUID
	Override uuid.UUID
}

// Well-known object type keys.
const (
	ObjectTypeBillingDetail = "billing_detail"
	ObjectTypeClient        = "client"
	ObjectTypeMatter        = "matter"
	ObjectTypeWorkspace     = "workspace"
	ObjectTypeUser          = "user"
)

// Well-known single-field keys.
const (
	FieldMatterArtifactID = "matter_artifact_id"
	FieldDateKey          = "date_key"
	FieldStatus           = "status"
)

// ObjectType returns the integer type ref for a well-known object type key.
func (m FieldMap) ObjectType(key string) (int, error) {
	ref, ok := m.ObjectTypes[key]
	if !ok {
		return 0, fmt.Errorf("field map: object type %q not configured", key)
	}
	return ref, nil
}

// Field returns the GUID for a well-known single field key.
func (m FieldMap) Field(key string) (uuid.UUID, error) {
	ref, ok := m.Fields[key]
	if !ok {
		return uuid.Nil, fmt.Errorf("field map: field %q not configured", key)
	}
	return ref, nil
}

// Bucket returns the destination pair for a billable bucket.
func (m FieldMap) Bucket(key string) (BucketFields, error) {
	pair, ok := m.Buckets[key]
	if !ok {
		return BucketFields{}, fmt.Errorf("field map: bucket %q not configured", key)
	}
	return pair, nil
}

// Entity returns the billing-store field refs for an entity key.
func (m FieldMap) Entity(key string) (EntityFields, error) {
	fields, ok := m.Entities[key]
	if !ok {
		return EntityFields{}, fmt.Errorf("field map: entity %q not configured", key)
	}
	return fields, nil
}

type rawFieldMap struct {
	ObjectTypes map[string]int    `mapstructure:"objectTypes"`
	Fields      map[string]string `mapstructure:"fields"`
	Buckets     map[string]struct {
		Standard string `mapstructure:"standard"`
		Override string `mapstructure:"override"`
	} `mapstructure:"buckets"`
	Entities map[string]map[string]string `mapstructure:"entities"`
}

// FieldMapHolder keeps the current field map and hot-reloads it when the
// backing file changes. Invalid updates are ignored, keeping the last good map.
type FieldMapHolder struct {
	current atomic.Value // holds FieldMap
}

// NewFieldMapHolder loads fieldmap.yml via viper and watches it for changes.
func NewFieldMapHolder(log *zap.Logger) (*FieldMapHolder, error) {
	log = log.Named("config.fieldmap")
	v := viper.New()

	v.SetConfigName("fieldmap")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/concord/config")
	v.AddConfigPath("/etc/concord")
	v.AddConfigPath(".")

	v.SetEnvPrefix("CONCORD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// No file: start with an empty map. Components that need refs
		// surface their own errors at run time.
	}

	cfg, err := unmarshalFieldMap(v)
	if err != nil {
		return nil, err
	}

	holder := &FieldMapHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := unmarshalFieldMap(v)
		if err != nil {
			log.Warn("invalid field map update ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("field map reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

// NewStaticFieldMapHolder wraps an already-built map; used by tests.
func NewStaticFieldMapHolder(m FieldMap) *FieldMapHolder {
	holder := &FieldMapHolder{}
	holder.current.Store(m)
	return holder
}

func (h *FieldMapHolder) Get() FieldMap {
	return h.current.Load().(FieldMap)
}

func unmarshalFieldMap(v *viper.Viper) (FieldMap, error) {
	var raw rawFieldMap
	if err := v.Unmarshal(&raw); err != nil {
		return FieldMap{}, err
	}
	return parseFieldMap(raw)
}

func parseFieldMap(raw rawFieldMap) (FieldMap, error) {
	out := FieldMap{
		ObjectTypes: map[string]int{},
		Fields:      map[string]uuid.UUID{},
		Buckets:     map[string]BucketFields{},
		Entities:    map[string]EntityFields{},
	}

	for key, ref := range raw.ObjectTypes {
		if ref <= 0 {
			return FieldMap{}, fmt.Errorf("field map: object type %q has non-positive ref %d", key, ref)
		}
		out.ObjectTypes[key] = ref
	}

	for key, value := range raw.Fields {
		id, err := parseGUID(key, value)
		if err != nil {
			return FieldMap{}, err
		}
		out.Fields[key] = id
	}

	for key, fields := range raw.Entities {
		parsed, err := parseEntityFields(key, fields)
		if err != nil {
			return FieldMap{}, err
		}
		out.Entities[key] = parsed
	}

	for key, pair := range raw.Buckets {
		standard, err := parseGUID(key, pair.Standard)
		if err != nil {
			return FieldMap{}, err
		}
		bucket := BucketFields{Standard: standard}
		if strings.TrimSpace(pair.Override) != "" {
			override, err := parseGUID(key, pair.Override)
			if err != nil {
				return FieldMap{}, err
			}
			bucket.Override = override
		}
		out.Buckets[key] = bucket
	}

	return out, nil
}

func parseEntityFields(entity string, fields map[string]string) (EntityFields, error) {
	var out EntityFields
	for name, value := range fields {
		if strings.TrimSpace(value) == "" {
			continue
		}
		id, err := parseGUID(entity+"."+name, value)
		if err != nil {
			return EntityFields{}, err
		}
		switch name {
		case "sourceKey":
			out.SourceKey = id
		case "name":
			out.Name = id
		case "number":
			out.Number = id
		case "createdBy":
			out.CreatedBy = id
		case "createdOn":
			out.CreatedOn = id
		case "caseTeam":
			out.CaseTeam = id
		case "analyst":
			out.Analyst = id
		case "status":
			out.Status = id
		default:
			return EntityFields{}, fmt.Errorf("field map: entity %q has unknown field %q", entity, name)
		}
	}
	if out.SourceKey == uuid.Nil {
		return EntityFields{}, fmt.Errorf("field map: entity %q is missing sourceKey", entity)
	}
	return out, nil
}

func parseGUID(key, value string) (uuid.UUID, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return uuid.Nil, fmt.Errorf("field map: %q is empty", key)
	}
	id, err := uuid.Parse(trimmed)
	if err != nil {
		return uuid.Nil, errors.Join(fmt.Errorf("field map: %q is not a GUID", key), err)
	}
	return id, nil
}
