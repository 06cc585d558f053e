package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/studentpakistan/backend/core/school"
	"github.com/studentpakistan/backend/core/user"
)

type schoolRepository struct {
	db *DB
}

func NewSchoolRepository(db *DB) school.Repository {
	return &schoolRepository{db: db}
}

func (repo *schoolRepository) RegisterSchool(_ context.Context, sch school.School, admin user.User) (school.School, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if stored, ok := repo.db.users[admin.ID]; ok && stored.SchoolID != nil {
		return school.School{}, school.ErrAdminHasSchool
	}
	for _, s := range repo.db.schools {
		if s.Code == sch.Code {
			return school.School{}, school.ErrCodeExists
		}
		if strings.EqualFold(s.RegistrationNumber, sch.RegistrationNumber) {
			return school.School{}, school.ErrRegistrationNumberExists
		}
	}
	if err := repo.db.checkUserUniqueness(admin.Username, admin.Email, admin); err != nil {
		return school.School{}, err
	}

	repo.db.putUser(admin)
	repo.db.schools[sch.ID] = &sch
	return sch, nil
}

func (repo *schoolRepository) GetSchoolByID(_ context.Context, id string) (school.School, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if sch, ok := repo.db.schools[id]; ok {
		return *sch, nil
	}
	return school.School{}, school.ErrNotFound
}

func (repo *schoolRepository) GetSchoolByCode(_ context.Context, code string) (school.School, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, sch := range repo.db.schools {
		if sch.Code == code {
			return *sch, nil
		}
	}
	return school.School{}, school.ErrNotFound
}

func (repo *schoolRepository) SearchSchools(_ context.Context, query, city string, limit int) ([]school.School, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	query, city = strings.ToLower(query), strings.ToLower(city)
	schools := make([]school.School, 0)
	for _, sch := range repo.db.schools {
		if !strings.Contains(strings.ToLower(sch.Name), query) {
			continue
		}
		if city != "" && !strings.Contains(strings.ToLower(sch.City), city) {
			continue
		}
		schools = append(schools, *sch)
	}
	sort.Slice(schools, func(i, j int) bool {
		return strings.ToLower(schools[i].Name) < strings.ToLower(schools[j].Name)
	})
	if limit > 0 && len(schools) > limit {
		schools = schools[:limit]
	}
	return schools, nil
}
