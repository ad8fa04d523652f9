package source

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

type registryEntry[T any] struct {
	Priority int
	TypeName string
	Value    T
}

type registry[T any] struct {
	locker  sync.Mutex
	entries map[reflect.Type]registryEntry[T]
}

func (r *registry[T]) register(priority int, value T) {
	t := reflect.ValueOf(value).Type()
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	r.locker.Lock()
	defer r.locker.Unlock()
	if r.entries == nil {
		r.entries = map[reflect.Type]registryEntry[T]{}
	}
	if _, ok := r.entries[t]; ok {
		panic(fmt.Errorf("there is already registered a value of type %v", t))
	}
	r.entries[t] = registryEntry[T]{
		Priority: priority,
		TypeName: t.String(),
		Value:    value,
	}
}

func (r *registry[T]) list() []T {
	r.locker.Lock()
	entries := make([]registryEntry[T], 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.locker.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Priority != entries[j].Priority {
			return entries[i].Priority > entries[j].Priority
		}
		return entries[i].TypeName < entries[j].TypeName
	})

	result := make([]T, 0, len(entries))
	for _, e := range entries {
		result = append(result, e.Value)
	}
	return result
}

var (
	decoderRegistry registry[Decoder]
	proberRegistry  registry[MetadataProber]
)

// RegisterDecoder makes the decoder available to NewAuto. Decoders with
// a higher priority are tried first.
func RegisterDecoder(priority int, decoder Decoder) {
	decoderRegistry.register(priority, decoder)
}

// RegisterMetadataProber makes the prober available to NewAuto.
func RegisterMetadataProber(priority int, prober MetadataProber) {
	proberRegistry.register(priority, prober)
}

func Decoders() []Decoder {
	return decoderRegistry.list()
}

func MetadataProbers() []MetadataProber {
	return proberRegistry.list()
}
