package catalog

// Query documents sent to the catalog server. Each find query takes a
// shared filter argument controlling pagination, ordering, and text
// search, and returns a count alongside the page of items.

const findScenesQuery = `
query FindScenes($filter: FindFilterType) {
  findScenes(filter: $filter) {
    count
    scenes {
      id
      title
      date
      rating100
      organized
      paths {
        screenshot
        preview
      }
      studio {
        id
        name
      }
      files {
        duration
        width
        height
        size
      }
    }
  }
}`

const findPerformersQuery = `
query FindPerformers($filter: FindFilterType) {
  findPerformers(filter: $filter) {
    count
    performers {
      id
      name
      disambiguation
      gender
      favorite
      rating100
      image_path
      scene_count
    }
  }
}`

const findStudiosQuery = `
query FindStudios($filter: FindFilterType) {
  findStudios(filter: $filter) {
    count
    studios {
      id
      name
      image_path
      scene_count
    }
  }
}`

const findGalleriesQuery = `
query FindGalleries($filter: FindFilterType) {
  findGalleries(filter: $filter) {
    count
    galleries {
      id
      title
      date
      rating100
      image_count
      paths {
        cover
      }
    }
  }
}`

const findTagsQuery = `
query FindTags($filter: FindFilterType) {
  findTags(filter: $filter) {
    count
    tags {
      id
      name
      image_path
      scene_count
    }
  }
}`

const systemStatusQuery = `
query SystemStatus {
  systemStatus {
    databaseSchema
    databasePath
    appSchema
    status
  }
  version {
    version
    hash
    build_time
  }
}`
