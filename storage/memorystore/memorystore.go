// Package memorystore implements storage.Store in a purely in-memory manner.
package memorystore

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/carebridge/portal/storage"
)

// New returns a store that provides transient, in-memory storage.
func New() storage.Store {
	return &store{
		data: map[string]map[string][]byte{},
	}
}

type store struct {
	// store[tableName][entityID] = JSON
	data map[string]map[string][]byte
	mu   sync.RWMutex
}

func (s *store) Create(models ...storage.Model) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range models {
		n := storage.Name(m)
		if s.data[n] == nil {
			s.data[n] = map[string][]byte{}
		}
		// The conflict check and the insert happen under one lock, which is
		// what gives Create its first-writer-wins guarantee.
		if s.data[n][m.PK()] != nil {
			return storage.ErrAlreadyExists
		}
		jsonBytes, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("%w: %s", storage.ErrInvalidModel, err)
		}
		s.data[n][m.PK()] = jsonBytes
	}
	return nil
}

func (s *store) Read(id string, model storage.Model) error {
	if err := storage.ValidateReceiver(model); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.read(id, model)
}

// read expects the caller to hold the lock.
func (s *store) read(id string, model storage.Model) error {
	n := storage.Name(model)
	if s.data[n] == nil || s.data[n][id] == nil {
		return storage.ErrNotFound
	}
	return json.Unmarshal(s.data[n][id], model)
}

func (s *store) Update(models ...storage.Model) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range models {
		n := storage.Name(m)
		if s.data[n] == nil || s.data[n][m.PK()] == nil {
			return storage.ErrNotFound
		}
		jsonBytes, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("%w: %s", storage.ErrInvalidModel, err)
		}
		s.data[n][m.PK()] = jsonBytes
	}
	return nil
}

func (s *store) Upsert(models ...storage.Model) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range models {
		n := storage.Name(m)
		if s.data[n] == nil {
			s.data[n] = map[string][]byte{}
		}
		jsonBytes, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("%w: %s", storage.ErrInvalidModel, err)
		}
		s.data[n][m.PK()] = jsonBytes
	}
	return nil
}

func (s *store) Merge(id string, partial storage.Model) error {
	patch, err := storage.PartialFields(partial)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n := storage.Name(partial)
	if s.data[n] == nil || s.data[n][id] == nil {
		return storage.ErrNotFound
	}

	doc := map[string]interface{}{}
	if err := json.Unmarshal(s.data[n][id], &doc); err != nil {
		return fmt.Errorf("%w: %s", storage.ErrInvalidModel, err)
	}
	for k, v := range patch {
		doc[k] = v
	}
	jsonBytes, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %s", storage.ErrInvalidModel, err)
	}
	s.data[n][id] = jsonBytes
	return nil
}

func (s *store) Delete(model storage.Model) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := storage.Name(model)
	id := model.PK()
	if s.data[n] == nil || s.data[n][id] == nil {
		return storage.ErrNotFound
	}
	delete(s.data[n], id)
	return nil
}

func (s *store) Exists(id string, model storage.Model) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := storage.Name(model)
	if s.data[n] == nil || s.data[n][id] == nil {
		return false, nil
	}
	return true, nil
}

// List always performs a full scan of all items.
func (s *store) List(models interface{}, filter storage.Model) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	modelsVal := reflect.ValueOf(models)
	if modelsVal.Kind() != reflect.Ptr || modelsVal.Elem().Kind() != reflect.Slice {
		return storage.ErrSliceRequired
	}

	sliceVal := modelsVal.Elem()
	elemType := sliceVal.Type().Elem()
	if elemType != reflect.TypeOf(filter) {
		return storage.ErrTypeMismatch
	}

	n := storage.Name(filter)
	if s.data[n] == nil {
		return nil
	}

	// Return models sorted by primary key.
	pks := make([]string, 0, len(s.data[n]))
	for pk := range s.data[n] {
		pks = append(pks, pk)
	}
	sort.Strings(pks)

	filterValue := reflect.ValueOf(filter)

	for _, pk := range pks {
		newElemPtr := reflect.New(elemType)
		newElem := newElemPtr.Elem()
		if err := s.read(pk, newElemPtr.Interface().(storage.Model)); err != nil {
			return err
		}
		// Skip if any non-zero field in filter differs from the corresponding
		// field in model.
		skip := false
		for i := 0; i < newElem.NumField(); i++ {
			if shouldFilter(filterValue.Field(i)) {
				fieldVal := newElem.Field(i).Interface()
				testVal := filterValue.Field(i).Interface()
				if !reflect.DeepEqual(fieldVal, testVal) {
					skip = true
					break
				}
			}
		}
		if !skip {
			sliceVal.Set(reflect.Append(sliceVal, newElem))
		}
	}

	return nil
}

// shouldFilter returns true for non-zero values and non-nil pointers.
func shouldFilter(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface:
		return !v.IsNil()
	default:
		return !reflect.DeepEqual(v.Interface(), reflect.Zero(v.Type()).Interface())
	}
}
